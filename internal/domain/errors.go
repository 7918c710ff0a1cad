package domain

import (
	"errors"
	"fmt"
)

// Erros de domínio do motor fiscal (sem dependências externas).
//
// Política de propagação: ErrValidacao e ErrAssinatura/ErrCertificado abortam
// a emissão e sobem ao chamador; ErrTransporte e ErrRejeicao durante a emissão
// são absorvidos pela contingência (a emissão ainda reporta sucesso com o
// documento pendente). Cancelamento e inutilização não têm contingência, então
// rejeições sobem direto.
var (
	ErrValidacao   = errors.New("entrada inválida")
	ErrCertificado = errors.New("certificado ausente ou inválido")
	ErrAssinatura  = errors.New("falha na assinatura do documento")
	ErrTransporte  = errors.New("falha de comunicação com a SEFAZ")
	ErrRejeicao    = errors.New("documento rejeitado pela SEFAZ")
	ErrNaoEncontrado = errors.New("recurso não encontrado")
)

// RejeicaoSefaz carrega o código e o motivo devolvidos pela autoridade.
// errors.Is(err, ErrRejeicao) continua funcionando via Unwrap.
type RejeicaoSefaz struct {
	CStat   string
	XMotivo string
}

func (e *RejeicaoSefaz) Error() string {
	return fmt.Sprintf("rejeição SEFAZ [%s]: %s", e.CStat, e.XMotivo)
}

func (e *RejeicaoSefaz) Unwrap() error { return ErrRejeicao }
