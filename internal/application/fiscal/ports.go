// Package fiscal orquestra o ciclo de vida da NFC-e: montagem, assinatura,
// transmissão e contingência. As portas abaixo isolam a persistência, que é
// opcional: com repositórios nulos o motor opera somente em memória.
package fiscal

import (
	"context"
	"sync/atomic"

	"github.com/pdvlabs/fiscal-api/internal/domain/entity"
)

// RepositorioDocumentos guarda o registro de auditoria das emissões.
type RepositorioDocumentos interface {
	Salvar(ctx context.Context, nota *entity.NotaEmitida) error
	AtualizarStatus(ctx context.Context, chave, status, protocolo string) error
	BuscarPorChave(ctx context.Context, chave string) (*entity.NotaEmitida, error)
	Listar(ctx context.Context, limite int) ([]*entity.NotaEmitida, error)
}

// RepositorioContingencia persiste o snapshot da fila entre reinícios do terminal.
type RepositorioContingencia interface {
	SalvarSnapshot(ctx context.Context, snap *entity.SnapshotContingencia) error
	CarregarSnapshot(ctx context.Context) (*entity.SnapshotContingencia, error)
}

// SequenciaNumeracao fornece o próximo nNF da série. O número é consumido
// mesmo que a emissão falhe depois: buracos na numeração são esperados e
// resolvidos por inutilização.
type SequenciaNumeracao interface {
	Proximo(ctx context.Context) (int64, error)
}

// NumeracaoMemoria sequência em memória, usada quando não há banco.
type NumeracaoMemoria struct {
	proximo atomic.Int64
}

// NovaNumeracaoMemoria cria a sequência começando em inicio (mínimo 1).
func NovaNumeracaoMemoria(inicio int64) *NumeracaoMemoria {
	if inicio < 1 {
		inicio = 1
	}
	n := &NumeracaoMemoria{}
	n.proximo.Store(inicio)
	return n
}

// Proximo devolve o número atual e avança a sequência.
func (n *NumeracaoMemoria) Proximo(_ context.Context) (int64, error) {
	return n.proximo.Add(1) - 1, nil
}
