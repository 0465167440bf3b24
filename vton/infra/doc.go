// Package infra implementa o domain.Provider sobre a API HTTP do Pixelcut
// (ou qualquer provedor com o mesmo formato: multipart com person_image e
// garment_image, resposta com a imagem ou com uma URL para buscá-la).
package infra
