package sefaz

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"time"

	"github.com/pdvlabs/fiscal-api/pkg/nfce"
)

// DadosEvento parâmetros do evento de cancelamento/carta de correção.
type DadosEvento struct {
	ChaveAcesso   string
	TpEvento      string // TpEventoCancelamento | TpEventoCartaCorrecao
	NSeqEvento    int    // 1 para o primeiro evento do tipo
	COrgao        string // código IBGE da UF
	TpAmb         string
	CNPJAutor     string
	DhEvento      time.Time
	Protocolo     string // nProt da autorização (obrigatório no cancelamento)
	Justificativa string // 15..255 caracteres
}

// MontarEvento gera o XML do <evento> e devolve também o Id de infEvento
// usado como Reference da assinatura.
func MontarEvento(d DadosEvento) ([]byte, string, error) {
	if err := nfce.ValidarChave(d.ChaveAcesso); err != nil {
		return nil, "", err
	}
	if d.NSeqEvento <= 0 {
		d.NSeqEvento = 1
	}
	if len(d.Justificativa) < 15 || len(d.Justificativa) > 255 {
		return nil, "", fmt.Errorf("sefaz: justificativa do evento deve ter entre 15 e 255 caracteres")
	}
	if d.TpEvento == TpEventoCancelamento && d.Protocolo == "" {
		return nil, "", fmt.Errorf("sefaz: cancelamento exige o protocolo de autorização")
	}

	refID := fmt.Sprintf("ID%s%s%02d", d.TpEvento, d.ChaveAcesso, d.NSeqEvento)

	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)

	evento := xml.StartElement{
		Name: xml.Name{Local: "evento"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns"}, Value: nsPortalFiscal},
			{Name: xml.Name{Local: "versao"}, Value: "1.00"},
		},
	}
	_ = enc.EncodeToken(evento)

	infEvento := xml.StartElement{
		Name: xml.Name{Local: "infEvento"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "Id"}, Value: refID}},
	}
	_ = enc.EncodeToken(infEvento)

	tag(enc, "cOrgao", d.COrgao)
	tag(enc, "tpAmb", d.TpAmb)
	tag(enc, "CNPJ", nfce.SomenteDigitos(d.CNPJAutor))
	tag(enc, "chNFe", d.ChaveAcesso)
	tag(enc, "dhEvento", d.DhEvento.Format("2006-01-02T15:04:05-07:00"))
	tag(enc, "tpEvento", d.TpEvento)
	tag(enc, "nSeqEvento", strconv.Itoa(d.NSeqEvento))
	tag(enc, "verEvento", "1.00")

	detEvento := xml.StartElement{
		Name: xml.Name{Local: "detEvento"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "versao"}, Value: "1.00"}},
	}
	_ = enc.EncodeToken(detEvento)
	switch d.TpEvento {
	case TpEventoCancelamento:
		tag(enc, "descEvento", "Cancelamento")
		tag(enc, "nProt", d.Protocolo)
		tag(enc, "xJust", Sanitizar(d.Justificativa))
	case TpEventoCartaCorrecao:
		tag(enc, "descEvento", "Carta de Correcao")
		tag(enc, "xCorrecao", Sanitizar(d.Justificativa))
		tag(enc, "xCondUso", condUsoCartaCorrecao)
	default:
		return nil, "", fmt.Errorf("sefaz: tipo de evento desconhecido %q", d.TpEvento)
	}
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "detEvento"}})

	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "infEvento"}})
	if err := enc.EncodeToken(evento.End()); err != nil {
		return nil, "", err
	}
	if err := enc.Flush(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), refID, nil
}

// Texto fixo exigido pelo layout da carta de correção.
const condUsoCartaCorrecao = "A Carta de Correcao e disciplinada pelo paragrafo 1o-A do art. 7o do Convenio S/N, de 15 de dezembro de 1970 e pode ser utilizada para regularizacao de erro ocorrido na emissao de documento fiscal, desde que o erro nao esteja relacionado com: I - as variaveis que determinam o valor do imposto tais como: base de calculo, aliquota, diferenca de preco, quantidade, valor da operacao ou da prestacao; II - a correcao de dados cadastrais que implique mudanca do remetente ou do destinatario; III - a data de emissao ou de saida."

// DadosInutilizacao parâmetros do pedido de inutilização de faixa de numeração.
type DadosInutilizacao struct {
	CUF           string
	Ano           string // dois dígitos (ex: "25")
	CNPJ          string
	Modelo        string
	Serie         string
	NumeroInicial int64
	NumeroFinal   int64
	TpAmb         string
	Justificativa string
}

// MontarInutilizacao gera o XML do <inutNFe> e o Id de infInut para a assinatura.
func MontarInutilizacao(d DadosInutilizacao) ([]byte, string, error) {
	if d.NumeroInicial <= 0 || d.NumeroFinal < d.NumeroInicial {
		return nil, "", fmt.Errorf("sefaz: faixa de inutilização inválida: %d..%d", d.NumeroInicial, d.NumeroFinal)
	}
	if len(d.Justificativa) < 15 || len(d.Justificativa) > 255 {
		return nil, "", fmt.Errorf("sefaz: justificativa da inutilização deve ter entre 15 e 255 caracteres")
	}
	cnpj := nfce.SomenteDigitos(d.CNPJ)
	if len(cnpj) != 14 {
		return nil, "", fmt.Errorf("sefaz: CNPJ inválido na inutilização: %q", d.CNPJ)
	}

	serie := fmt.Sprintf("%03s", d.Serie)
	refID := fmt.Sprintf("ID%s%s%s%s%s%09d%09d",
		d.CUF, d.Ano, cnpj, d.Modelo, serie, d.NumeroInicial, d.NumeroFinal)

	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)

	inut := xml.StartElement{
		Name: xml.Name{Local: "inutNFe"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns"}, Value: nsPortalFiscal},
			{Name: xml.Name{Local: "versao"}, Value: versaoLayout},
		},
	}
	_ = enc.EncodeToken(inut)

	infInut := xml.StartElement{
		Name: xml.Name{Local: "infInut"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "Id"}, Value: refID}},
	}
	_ = enc.EncodeToken(infInut)
	tag(enc, "tpAmb", d.TpAmb)
	tag(enc, "xServ", "INUTILIZAR")
	tag(enc, "cUF", d.CUF)
	tag(enc, "ano", d.Ano)
	tag(enc, "CNPJ", cnpj)
	tag(enc, "mod", d.Modelo)
	tag(enc, "serie", d.Serie)
	tag(enc, "nNFIni", strconv.FormatInt(d.NumeroInicial, 10))
	tag(enc, "nNFFin", strconv.FormatInt(d.NumeroFinal, 10))
	tag(enc, "xJust", Sanitizar(d.Justificativa))
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "infInut"}})

	if err := enc.EncodeToken(inut.End()); err != nil {
		return nil, "", err
	}
	if err := enc.Flush(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), refID, nil
}
