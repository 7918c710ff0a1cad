// Package sefaz implementa o transporte com os web services da SEFAZ (NFC-e
// v4.00): um método por serviço, com envelope SOAP 1.2 e vocabulário de
// códigos de status próprio de cada operação.
package sefaz

import (
	"context"
	"time"
)

// ── Códigos cStat relevantes ao motor ─────────────────────────────────────────

const (
	// CStatAutorizado uso autorizado (consulta de recibo e de chave).
	CStatAutorizado = "100"
	// CStatInutilizacaoHomologada inutilização de numeração homologada.
	CStatInutilizacaoHomologada = "102"
	// CStatLoteRecebido lote recebido com sucesso (autorização assíncrona pendente).
	CStatLoteRecebido = "103"
	// CStatLoteProcessado lote processado (resultado no protNFe).
	CStatLoteProcessado = "104"
	// CStatServicoEmOperacao serviço em operação (consulta de status).
	CStatServicoEmOperacao = "107"
	// CStatEventoRegistrado evento registrado e vinculado à NFC-e.
	CStatEventoRegistrado = "135"
	// CStatEventoRegistradoSemVinculo evento registrado sem vínculo com a NFC-e.
	CStatEventoRegistradoSemVinculo = "136"
	// CStatCancelamentoForaPrazo cancelamento homologado fora de prazo.
	CStatCancelamentoForaPrazo = "155"
)

// EventosAceitos códigos de retorno que contam como evento aceito pela SEFAZ.
var EventosAceitos = map[string]bool{
	CStatEventoRegistrado:           true,
	CStatEventoRegistradoSemVinculo: true,
	CStatCancelamentoForaPrazo:      true,
}

// Tipos de evento (tabela do layout de eventos).
const (
	TpEventoCancelamento   = "110111"
	TpEventoCartaCorrecao  = "110110"
)

// ── Resultados normalizados ───────────────────────────────────────────────────

// Resposta resultado normalizado de uma operação SEFAZ.
// Sucesso=false sem erro Go significa rejeição reportada pela autoridade;
// falha de rede/timeout vira erro embrulhando domain.ErrTransporte.
type Resposta struct {
	Sucesso     bool
	CStat       string
	XMotivo     string
	Protocolo   string // nProt (quando autorizado/homologado)
	Recibo      string // nRec (retorno da autorização)
	ChaveAcesso string // chNFe (quando presente no protocolo)
	Raw         []byte // XML bruto da resposta para auditoria
}

// RespostaStatus resultado da consulta de status do serviço.
type RespostaStatus struct {
	Online        bool
	CStat         string
	XMotivo       string
	TempoResposta time.Duration // ida e volta da chamada
	Raw           []byte
}

// ── Porta (interface) ─────────────────────────────────────────────────────────

// Transmissor define a porta de saída para os web services da SEFAZ.
// A implementação concreta usa SOAP; para testes injeta-se um fake.
type Transmissor interface {
	// Autorizar envia o lote com a NFC-e assinada. Sucesso quando cStat == 103
	// (lote recebido); a autorização em si é assíncrona e obtida via ConsultarRecibo.
	Autorizar(ctx context.Context, xmlAssinado []byte, chave string) (*Resposta, error)
	// ConsultarRecibo consulta o resultado do processamento de um recibo.
	// Sucesso quando o protocolo traz cStat == 100.
	ConsultarRecibo(ctx context.Context, recibo string) (*Resposta, error)
	// ConsultarChave consulta a situação de um documento pela chave de acesso.
	ConsultarChave(ctx context.Context, chave string) (*Resposta, error)
	// StatusServico consulta a disponibilidade do autorizador (cStat 107 = online).
	StatusServico(ctx context.Context) (*RespostaStatus, error)
	// EnviarEvento envia um evento assinado (cancelamento, carta de correção).
	EnviarEvento(ctx context.Context, xmlEventoAssinado []byte) (*Resposta, error)
	// Inutilizar envia um pedido de inutilização de faixa assinado (cStat 102).
	Inutilizar(ctx context.Context, xmlInutAssinado []byte) (*Resposta, error)
	// DefinirAmbiente troca produção/homologação sem reconstruir o cliente.
	DefinirAmbiente(tpAmb string)
}
