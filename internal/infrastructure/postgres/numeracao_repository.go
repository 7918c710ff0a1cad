package postgres

import (
	"context"
	"fmt"

	"github.com/pdvlabs/fiscal-api/internal/application/fiscal"
)

var _ fiscal.SequenciaNumeracao = (*NumeracaoRepo)(nil)

// NumeracaoRepo sequência de nNF durável por série. O upsert atômico garante
// que dois terminais da mesma série nunca recebam o mesmo número.
type NumeracaoRepo struct {
	q      Querier
	serie  string
	inicio int64
}

// NovoNumeracaoRepo constrói a sequência da série, começando em inicio quando
// a série ainda não existe no banco.
func NovoNumeracaoRepo(q Querier, serie string, inicio int64) *NumeracaoRepo {
	if inicio < 1 {
		inicio = 1
	}
	return &NumeracaoRepo{q: q, serie: serie, inicio: inicio}
}

// Proximo consome e devolve o próximo número da série.
func (r *NumeracaoRepo) Proximo(ctx context.Context) (int64, error) {
	query := `
		INSERT INTO numeracao_fiscal (serie, proximo)
		VALUES ($1, $2 + 1)
		ON CONFLICT (serie) DO UPDATE
		SET proximo = numeracao_fiscal.proximo + 1
		RETURNING proximo - 1`
	var numero int64
	if err := r.q.QueryRow(ctx, query, r.serie, r.inicio).Scan(&numero); err != nil {
		return 0, fmt.Errorf("avançar numeração da série %s: %w", r.serie, err)
	}
	return numero, nil
}
