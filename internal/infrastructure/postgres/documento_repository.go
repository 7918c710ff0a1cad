package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pdvlabs/fiscal-api/internal/application/fiscal"
	"github.com/pdvlabs/fiscal-api/internal/domain"
	"github.com/pdvlabs/fiscal-api/internal/domain/entity"
)

var _ fiscal.RepositorioDocumentos = (*NotaRepo)(nil)

// NotaRepo adaptador de auditoria das emissões (usável com pool ou tx).
type NotaRepo struct {
	q Querier
}

// NovoNotaRepo constrói o adaptador.
func NovoNotaRepo(q Querier) *NotaRepo {
	return &NotaRepo{q: q}
}

// Salvar persiste o registro de uma emissão. A chave de acesso é única.
func (r *NotaRepo) Salvar(ctx context.Context, nota *entity.NotaEmitida) error {
	query := `
		INSERT INTO notas_emitidas (id, chave_acesso, serie, numero, valor_total, status, protocolo, recibo, qrcode, xml_assinado, emitida_em, atualizada_em)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.q.Exec(ctx, query,
		nota.ID, nota.ChaveAcesso, nota.Serie, nota.Numero, nota.ValorTotal,
		nota.Status, nullIfEmpty(nota.Protocolo), nullIfEmpty(nota.Recibo),
		nota.QRCode, nota.XMLAssinado, nota.EmitidaEm, nota.AtualizadaEm,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("chave de acesso já registrada: %w", err)
		}
		return fmt.Errorf("inserir nota emitida: %w", err)
	}
	return nil
}

// AtualizarStatus grava a mudança de situação (autorização tardia, cancelamento).
func (r *NotaRepo) AtualizarStatus(ctx context.Context, chave, status, protocolo string) error {
	query := `
		UPDATE notas_emitidas
		SET status        = $2,
		    protocolo     = COALESCE($3, protocolo),
		    atualizada_em = $4
		WHERE chave_acesso = $1`
	tag, err := r.q.Exec(ctx, query, chave, status, nullIfEmpty(protocolo), time.Now())
	if err != nil {
		return fmt.Errorf("atualizar status da nota: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: nota %s", domain.ErrNaoEncontrado, chave)
	}
	return nil
}

// BuscarPorChave carrega o registro completo de uma emissão.
func (r *NotaRepo) BuscarPorChave(ctx context.Context, chave string) (*entity.NotaEmitida, error) {
	query := `
		SELECT id, chave_acesso, serie, numero, valor_total, status,
		       COALESCE(protocolo, ''), COALESCE(recibo, ''), qrcode, xml_assinado,
		       emitida_em, atualizada_em
		FROM notas_emitidas WHERE chave_acesso = $1`
	var n entity.NotaEmitida
	err := r.q.QueryRow(ctx, query, chave).Scan(
		&n.ID, &n.ChaveAcesso, &n.Serie, &n.Numero, &n.ValorTotal, &n.Status,
		&n.Protocolo, &n.Recibo, &n.QRCode, &n.XMLAssinado,
		&n.EmitidaEm, &n.AtualizadaEm,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: nota %s", domain.ErrNaoEncontrado, chave)
		}
		return nil, fmt.Errorf("buscar nota: %w", err)
	}
	return &n, nil
}

// Listar devolve as emissões mais recentes (sem o XML, consulta leve).
func (r *NotaRepo) Listar(ctx context.Context, limite int) ([]*entity.NotaEmitida, error) {
	if limite <= 0 || limite > 500 {
		limite = 100
	}
	query := `
		SELECT id, chave_acesso, serie, numero, valor_total, status,
		       COALESCE(protocolo, ''), COALESCE(recibo, ''), qrcode,
		       emitida_em, atualizada_em
		FROM notas_emitidas ORDER BY emitida_em DESC LIMIT $1`
	rows, err := r.q.Query(ctx, query, limite)
	if err != nil {
		return nil, fmt.Errorf("listar notas: %w", err)
	}
	defer rows.Close()

	var lista []*entity.NotaEmitida
	for rows.Next() {
		var n entity.NotaEmitida
		if err := rows.Scan(&n.ID, &n.ChaveAcesso, &n.Serie, &n.Numero, &n.ValorTotal,
			&n.Status, &n.Protocolo, &n.Recibo, &n.QRCode, &n.EmitidaEm, &n.AtualizadaEm); err != nil {
			return nil, fmt.Errorf("ler nota: %w", err)
		}
		lista = append(lista, &n)
	}
	return lista, rows.Err()
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// isUniqueViolation verifica se o erro é violação de constraint única (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "23505")
}
