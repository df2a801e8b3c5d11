// Package infra contém implementações concretas dos contratos do pacote domain.
//
//   - MemoryCounterStore / RedisCounterStore: janelas fixas por política
//   - TokenBucketStore: limite global por cliente com golang.org/x/time/rate
//   - MemoryStatsStore / RedisStatsStore: contadores de allow/deny
//   - SemaphorePool: vagas de processamento para o limite de concorrência
package infra
