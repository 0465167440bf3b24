// Package ratelimit fornece adapters HTTP (net/http) para o rate limit por janela
// deslizante e o limite de concorrência do gateway de try-on.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (decisão allow/deny, acquire/timeout) sem net/http
//   - infra: implementações concretas (janela em memória/Redis, semáforo, stats)
//   - ratelimit (este pacote): extração de chave, middleware de concorrência e
//     tradução da decisão para headers (Retry-After, X-RateLimit-*)
//
// A admissão em si não é um middleware: o handler de /vton/ valida as imagens
// primeiro e só então consome quota, para que upload inválido não gaste tentativa.
package ratelimit
