package entity

import "time"

// StatusOperacao situação de uma operação na fila de contingência.
// Variante etiquetada em vez de string livre: o compilador pega typos e o
// switch do gerenciador cobre todos os casos.
type StatusOperacao string

const (
	OperacaoPendente    StatusOperacao = "PENDENTE"
	OperacaoTransmitida StatusOperacao = "TRANSMITIDA"
	OperacaoErro        StatusOperacao = "ERRO"
	OperacaoCancelada   StatusOperacao = "CANCELADA"
)

// MotivoContingencia razões de ativação registradas na transição Online→Contingência.
const (
	MotivoFalhaAutorizacao = "falha na autorização"
	MotivoFalhaStatusServico = "serviço SEFAZ indisponível"
	MotivoForcada           = "contingência forçada por configuração"
)

// OperacaoContingencia uma emissão aguardando transmissão à SEFAZ.
// Criada quando o orquestrador não consegue transmitir online; mutada pelo
// gerenciador a cada tentativa; removida da fila após ficar TRANSMITIDA,
// ERRO definitivo ou CANCELADA.
type OperacaoContingencia struct {
	ID              string         `json:"id"`
	ChaveAcesso     string         `json:"chave_acesso"`
	XML             string         `json:"xml"`
	XMLAssinado     string         `json:"xml_assinado"`
	CriadaEm        time.Time      `json:"criada_em"`
	Tentativas      int            `json:"tentativas"`
	UltimaTentativa time.Time      `json:"ultima_tentativa"`
	Status          StatusOperacao `json:"status"`
	Motivo          string         `json:"motivo"`
	Erro            string         `json:"erro,omitempty"`
}

// StatusContingencia visão do estado do gerenciador para o PDV e o back-office.
type StatusContingencia struct {
	Ativa                bool      `json:"ativa"`
	Motivo               string    `json:"motivo,omitempty"`
	AtivadaEm            time.Time `json:"ativada_em,omitempty"`
	OperacoesPendentes   int       `json:"operacoes_pendentes"`
	UltimaVerificacao    time.Time `json:"ultima_verificacao,omitempty"`
	ProximaVerificacao   time.Time `json:"proxima_verificacao,omitempty"`
}

// SnapshotContingencia fila + estado exportados para persistência entre reinícios.
// O mecanismo de persistência é colaborador externo; o snapshot é o contrato.
type SnapshotContingencia struct {
	Status    StatusContingencia      `json:"status"`
	Operacoes []*OperacaoContingencia `json:"operacoes"`
}
