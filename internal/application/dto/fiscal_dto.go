// DTOs da API fiscal: contratos de entrada e saída do PDV.

package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemVenda uma linha da venda enviada pelo terminal. Os códigos tributários
// são opcionais; ausentes, o motor aplica o perfil padrão do Simples Nacional.
type ItemVenda struct {
	Codigo        string          `json:"codigo"`
	Descricao     string          `json:"descricao"`
	Quantidade    decimal.Decimal `json:"quantidade"`
	ValorUnitario decimal.Decimal `json:"valor_unitario"`
	CFOP          string          `json:"cfop,omitempty"`
	CSOSN         string          `json:"csosn,omitempty"`
}

// PagamentoVenda forma e valor pagos. Forma aceita o código tPag ("01", "17")
// ou o apelido ("dinheiro", "pix", "credito", "debito").
type PagamentoVenda struct {
	Forma     string          `json:"forma"`
	ValorPago decimal.Decimal `json:"valor_pago"`
}

// EmitirRequest pedido de emissão de NFC-e para uma venda fechada.
type EmitirRequest struct {
	DestCPFCNPJ string         `json:"dest_cpf_cnpj,omitempty"`
	NatOp       string         `json:"nat_op,omitempty"`
	Itens       []ItemVenda    `json:"itens"`
	Pagamento   PagamentoVenda `json:"pagamento"`
}

// EmissaoResponse resultado de uma emissão. Contingencia=true indica que o
// documento foi enfileirado e será transmitido quando a SEFAZ voltar.
type EmissaoResponse struct {
	ChaveAcesso  string          `json:"chave_acesso"`
	Serie        string          `json:"serie"`
	Numero       int64           `json:"numero"`
	Status       string          `json:"status"`
	Protocolo    string          `json:"protocolo,omitempty"`
	Recibo       string          `json:"recibo,omitempty"`
	QRCode       string          `json:"qrcode"`
	ValorTotal   decimal.Decimal `json:"valor_total"`
	Contingencia bool            `json:"contingencia"`
	EmitidaEm    time.Time       `json:"emitida_em"`
}

// CancelarRequest pedido de cancelamento de uma NFC-e autorizada.
type CancelarRequest struct {
	ChaveAcesso   string `json:"chave_acesso"`
	Protocolo     string `json:"protocolo"`
	Justificativa string `json:"justificativa"`
}

// InutilizarRequest pedido de inutilização de uma faixa de numeração.
type InutilizarRequest struct {
	NumeroInicial int64  `json:"numero_inicial"`
	NumeroFinal   int64  `json:"numero_final"`
	Justificativa string `json:"justificativa"`
}

// EventoResponse resultado de cancelamento ou inutilização homologados.
type EventoResponse struct {
	ChaveAcesso string `json:"chave_acesso,omitempty"`
	CStat       string `json:"cstat"`
	XMotivo     string `json:"xmotivo"`
	Protocolo   string `json:"protocolo,omitempty"`
}

// ConsultaResponse situação de um documento consultado pela chave.
type ConsultaResponse struct {
	ChaveAcesso string `json:"chave_acesso"`
	CStat       string `json:"cstat"`
	XMotivo     string `json:"xmotivo"`
	Protocolo   string `json:"protocolo,omitempty"`
}

// StatusServicoResponse disponibilidade da SEFAZ vista pelo terminal.
type StatusServicoResponse struct {
	Online          bool   `json:"online"`
	CStat           string `json:"cstat,omitempty"`
	XMotivo         string `json:"xmotivo,omitempty"`
	TempoRespostaMs int64  `json:"tempo_resposta_ms,omitempty"`
	Erro            string `json:"erro,omitempty"`
}

// CertificadoResponse dados do certificado carregado e alerta de vencimento.
type CertificadoResponse struct {
	Titular           string    `json:"titular"`
	Emissor           string    `json:"emissor"`
	NumeroSerie       string    `json:"numero_serie"`
	ValidoDesde       time.Time `json:"valido_desde"`
	ValidoAte         time.Time `json:"valido_ate"`
	DiasRestantes     int       `json:"dias_restantes"`
	ProximoVencimento bool      `json:"proximo_vencimento"`
}

// FlushResponse resultado de uma transmissão manual da fila de contingência.
type FlushResponse struct {
	Transmitidas int `json:"transmitidas"`
	ComErro      int `json:"com_erro"`
	Restantes    int `json:"restantes"`
}

// ErrorResponse payload padronizado de erro da API.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
