// Package domain define os tipos do try-on (imagens enviadas, resultado) e a
// taxonomia de erros que atravessa o gateway.
//
// Não depende de net/http nem do provedor concreto.
package domain
