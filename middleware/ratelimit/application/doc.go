// Package application contém os casos de uso do rate limit e do limite de
// concorrência.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: PolicyService.Check(ctx, key, policy) aplica a janela fixa de um
// endpoint; Service.Decide(key) aplica o token bucket global.
package application
