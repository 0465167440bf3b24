// Package application contém os casos de uso do try-on: validação das imagens
// enviadas e a orquestração validação -> admissão -> provedor.
//
// Não conhece net/http; devolve resultados ou *domain.Error classificados.
package application
