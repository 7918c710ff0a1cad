package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Situações locais de uma nota emitida pelo terminal.
const (
	NotaStatusAutorizada   = "AUTORIZADA"   // protocolo de autorização recebido
	NotaStatusLoteRecebido = "LOTE_RECEBIDO" // lote aceito (103), autorização assíncrona pendente
	NotaStatusContingencia = "CONTINGENCIA"  // enfileirada para transmissão posterior
	NotaStatusRejeitada    = "REJEITADA"
	NotaStatusCancelada    = "CANCELADA" // evento de cancelamento homologado
)

// Identificacao bloco ide do documento.
type Identificacao struct {
	CUF      string    // código IBGE da UF
	CNF      string    // código numérico aleatório (8 dígitos)
	NatOp    string    // natureza da operação
	Modelo   string    // "65"
	Serie    string
	Numero   int64     // nNF
	DhEmi    time.Time // data e hora de emissão
	TpEmis   string    // "1" normal | "9" contingência
	TpAmb    string    // "1" produção | "2" homologação
}

// Emitente bloco emit do documento.
type Emitente struct {
	CNPJ         string
	RazaoSocial  string
	NomeFantasia string
	IE           string
	CRT          string
	Logradouro   string
	NumeroEnd    string
	Bairro       string
	CodMunicipio string
	Municipio    string
	UF           string
	CEP          string
}

// ItemNota uma linha de venda com a classificação tributária. Os códigos
// tributários assumem o perfil "não tributado no Simples Nacional" quando não
// informados.
type ItemNota struct {
	Codigo    string          // código do produto no PDV
	Descricao string
	Quantidade decimal.Decimal
	ValorUnitario decimal.Decimal
	ValorTotal    decimal.Decimal // quantidade × unitário, arredondado a 2 casas
	CFOP      string
	CSOSN     string // situação ICMS no Simples
	CSTPis    string
	CSTCofins string
}

// Totais bloco total. VNF deve igualar a soma dos ValorTotal dos itens.
type Totais struct {
	VProd decimal.Decimal // soma dos itens
	VNF   decimal.Decimal // valor total da nota
}

// Pagamento bloco pag. VPag somado deve cobrir VNF menos o troco.
type Pagamento struct {
	Forma string          // código tPag (01 dinheiro, 17 pix, ...)
	VPag  decimal.Decimal // valor pago
	Troco decimal.Decimal
}

// NotaFiscal documento fiscal canônico antes da assinatura.
type NotaFiscal struct {
	ID          string // id interno (uuid)
	ChaveAcesso string // 44 dígitos
	Ide         Identificacao
	Emit        Emitente
	DestCPFCNPJ string // documento do consumidor (opcional)
	Itens       []ItemNota
	Total       Totais
	Pag         Pagamento
}

// NotaEmitida registro de auditoria de uma emissão (persistido quando houver repositório).
type NotaEmitida struct {
	ID          string
	ChaveAcesso string
	Serie       string
	Numero      int64
	ValorTotal  decimal.Decimal
	Status      string // NotaStatus*
	Protocolo   string
	Recibo      string
	QRCode      string
	XMLAssinado string
	EmitidaEm   time.Time
	AtualizadaEm time.Time
}
