package nfce

// =============================================================================
// Modelo e tipo de emissão (tabela do layout NF-e/NFC-e)
// =============================================================================

const (
	ModeloNFCe = "65" // NFC-e consumidor final
	ModeloNFe  = "55" // NF-e

	TpEmisNormal      = "1" // emissão normal
	TpEmisContingencia = "9" // contingência off-line NFC-e

	TpAmbProducao    = "1"
	TpAmbHomologacao = "2"
)

// =============================================================================
// CFOP — operações de venda no varejo (saída dentro do estado)
// =============================================================================

const (
	CFOPVendaDentroEstado = "5102" // venda de mercadoria adquirida de terceiros
	CFOPVendaProducao     = "5101" // venda de produção do estabelecimento
)

// =============================================================================
// CSOSN — Código de Situação da Operação do Simples Nacional (Anexo ICMS)
// Perfil padrão "não tributado no regime simplificado" dos itens.
// =============================================================================

const (
	CSOSNTributadaSemCredito = "102" // tributada pelo Simples sem permissão de crédito
	CSOSNImune               = "300"
	CSOSNOutros              = "900"
)

// =============================================================================
// CST de PIS/COFINS — perfil padrão do Simples Nacional
// =============================================================================

const (
	CSTPisCofinsOutrasOperacoes = "99" // outras operações (sem destaque)
	CSTPisCofinsAliquotaBasica  = "01"
)

// =============================================================================
// CRT — Código de Regime Tributário do emitente
// =============================================================================

const (
	CRTSimplesNacional = "1"
	CRTRegimeNormal    = "3"
)

// =============================================================================
// Formas de pagamento (tabela tPag do layout)
// =============================================================================

const (
	PagDinheiro         = "01"
	PagCheque           = "02"
	PagCartaoCredito    = "03"
	PagCartaoDebito     = "04"
	PagPix              = "17"
	PagSemPagamento     = "90"
)

// FormasPagamentoValidas contém os códigos tPag aceitos pelo motor fiscal.
var FormasPagamentoValidas = map[string]bool{
	PagDinheiro: true, PagCheque: true, PagCartaoCredito: true,
	PagCartaoDebito: true, PagPix: true, PagSemPagamento: true,
}

// CodigoFormaPagamento traduz os apelidos usados pelo front do PDV para o
// código tPag do layout. Retorna "" quando não reconhece o apelido.
func CodigoFormaPagamento(apelido string) string {
	switch apelido {
	case "dinheiro", "cash", PagDinheiro:
		return PagDinheiro
	case "credito", "cartao_credito", PagCartaoCredito:
		return PagCartaoCredito
	case "debito", "cartao_debito", PagCartaoDebito:
		return PagCartaoDebito
	case "pix", PagPix:
		return PagPix
	case "cheque", PagCheque:
		return PagCheque
	case "sem_pagamento", PagSemPagamento:
		return PagSemPagamento
	default:
		return ""
	}
}
