// Package vton é a borda HTTP do gateway de try-on.
//
// O handler de /vton/ lê o multipart, delega ao application.Service e traduz o
// resultado (ou o domain.Error) para status, headers e corpo JSON. As demais
// rotas (/, /openapi.json, /stats) são informativas.
package vton
