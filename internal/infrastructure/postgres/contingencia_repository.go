package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pdvlabs/fiscal-api/internal/application/fiscal"
	"github.com/pdvlabs/fiscal-api/internal/domain/entity"
)

var _ fiscal.RepositorioContingencia = (*ContingenciaRepo)(nil)

// ContingenciaRepo guarda o snapshot da fila de contingência como JSONB.
// Cada terminal tem um único snapshot (linha fixa), regravado a cada mudança.
type ContingenciaRepo struct {
	q        Querier
	terminal string
}

// NovoContingenciaRepo constrói o adaptador para o terminal informado.
func NovoContingenciaRepo(q Querier, terminal string) *ContingenciaRepo {
	if terminal == "" {
		terminal = "default"
	}
	return &ContingenciaRepo{q: q, terminal: terminal}
}

// SalvarSnapshot regrava o snapshot do terminal (upsert).
func (r *ContingenciaRepo) SalvarSnapshot(ctx context.Context, snap *entity.SnapshotContingencia) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("serializar snapshot: %w", err)
	}
	query := `
		INSERT INTO contingencia_snapshots (terminal, snapshot, atualizado_em)
		VALUES ($1, $2, $3)
		ON CONFLICT (terminal) DO UPDATE
		SET snapshot = EXCLUDED.snapshot, atualizado_em = EXCLUDED.atualizado_em`
	if _, err := r.q.Exec(ctx, query, r.terminal, payload, time.Now()); err != nil {
		return fmt.Errorf("gravar snapshot de contingência: %w", err)
	}
	return nil
}

// CarregarSnapshot lê o snapshot persistido; nil sem erro quando não existe.
func (r *ContingenciaRepo) CarregarSnapshot(ctx context.Context) (*entity.SnapshotContingencia, error) {
	var payload []byte
	err := r.q.QueryRow(ctx,
		`SELECT snapshot FROM contingencia_snapshots WHERE terminal = $1`, r.terminal,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ler snapshot de contingência: %w", err)
	}
	var snap entity.SnapshotContingencia
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("desserializar snapshot: %w", err)
	}
	return &snap, nil
}
