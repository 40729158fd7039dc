package utils

import (
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const runIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewRunID gera o id de uma execução no formato <tipo>-<AAAAMMDD>-<sufixo>,
// legível nos logs e ordenável por dia
func NewRunID(kind string, startedAt time.Time) (string, error) {
	suffix, err := gonanoid.Generate(runIDAlphabet, 6)
	if err != nil {
		return "", err
	}
	return kind + "-" + FormatCompact(startedAt) + "-" + suffix, nil
}
