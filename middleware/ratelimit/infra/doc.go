// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - MemoryWindowStore: janela deslizante por chave em memória (concurrent-map)
//   - RedisWindowStore: a mesma janela em um ZSET do Redis, via script Lua
//   - ChanPool: semáforo simples para limite de concorrência
//   - MemoryStatsStore / RedisStatsStore: contadores de desfecho das requisições
package infra
