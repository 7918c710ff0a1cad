package sefaz

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/pdvlabs/fiscal-api/internal/domain/entity"
	"github.com/pdvlabs/fiscal-api/pkg/nfce"
)

// Versão do layout NFC-e gerado pelo construtor.
const versaoLayout = "4.00"

// ConstrutorXML serializa a NotaFiscal canônica para o XML do layout 4.00
// (sem assinatura). O encoder do stdlib cuida do escape dos caracteres
// reservados de marcação em descrições e nomes.
type ConstrutorXML struct{}

// NovoConstrutorXML cria o serviço.
func NovoConstrutorXML() *ConstrutorXML {
	return &ConstrutorXML{}
}

// Montar gera o []byte do elemento <NFe> com <infNFe Id="NFe{chave}">.
// O assinador injeta <Signature> como irmão de infNFe depois.
func (s *ConstrutorXML) Montar(nota *entity.NotaFiscal) ([]byte, error) {
	if nota == nil {
		return nil, fmt.Errorf("sefaz: nota é obrigatória")
	}
	if len(nota.ChaveAcesso) != nfce.LenChave {
		return nil, fmt.Errorf("sefaz: chave de acesso inválida na nota: %q", nota.ChaveAcesso)
	}

	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)

	root := xml.StartElement{
		Name: xml.Name{Local: "NFe"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "xmlns"}, Value: nsPortalFiscal}},
	}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}

	infNFe := xml.StartElement{
		Name: xml.Name{Local: "infNFe"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "Id"}, Value: "NFe" + nota.ChaveAcesso},
			{Name: xml.Name{Local: "versao"}, Value: versaoLayout},
		},
	}
	_ = enc.EncodeToken(infNFe)

	s.escreverIde(enc, nota)
	s.escreverEmit(enc, &nota.Emit)
	s.escreverDest(enc, nota)
	for i, item := range nota.Itens {
		s.escreverDet(enc, i+1, &item)
	}
	s.escreverTotal(enc, &nota.Total)
	// transp obrigatório no layout; NFC-e presencial é sempre sem frete
	abrir(enc, "transp")
	tag(enc, "modFrete", "9")
	fechar(enc, "transp")
	s.escreverPag(enc, &nota.Pag)

	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "infNFe"}})
	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *ConstrutorXML) escreverIde(enc *xml.Encoder, nota *entity.NotaFiscal) {
	ide := nota.Ide
	abrir(enc, "ide")
	tag(enc, "cUF", ide.CUF)
	tag(enc, "cNF", ide.CNF)
	tag(enc, "natOp", Sanitizar(ide.NatOp))
	tag(enc, "mod", ide.Modelo)
	tag(enc, "serie", strings.TrimLeft(ide.Serie, "0"))
	tag(enc, "nNF", strconv.FormatInt(ide.Numero, 10))
	tag(enc, "dhEmi", ide.DhEmi.Format("2006-01-02T15:04:05-07:00"))
	tag(enc, "tpNF", "1")    // saída
	tag(enc, "idDest", "1")  // operação interna
	tag(enc, "cMunFG", nota.Emit.CodMunicipio)
	tag(enc, "tpImp", "4")   // DANFE NFC-e
	tag(enc, "tpEmis", ide.TpEmis)
	tag(enc, "cDV", string(nota.ChaveAcesso[nfce.LenChave-1]))
	tag(enc, "tpAmb", ide.TpAmb)
	tag(enc, "finNFe", "1")  // normal
	tag(enc, "indFinal", "1") // consumidor final
	tag(enc, "indPres", "1")  // operação presencial
	tag(enc, "procEmi", "0")
	tag(enc, "verProc", "pdv-fiscal")
	fechar(enc, "ide")
}

func (s *ConstrutorXML) escreverEmit(enc *xml.Encoder, e *entity.Emitente) {
	abrir(enc, "emit")
	tag(enc, "CNPJ", nfce.SomenteDigitos(e.CNPJ))
	tag(enc, "xNome", Sanitizar(e.RazaoSocial))
	if e.NomeFantasia != "" {
		tag(enc, "xFant", Sanitizar(e.NomeFantasia))
	}
	abrir(enc, "enderEmit")
	tag(enc, "xLgr", Sanitizar(e.Logradouro))
	tag(enc, "nro", e.NumeroEnd)
	tag(enc, "xBairro", Sanitizar(e.Bairro))
	tag(enc, "cMun", e.CodMunicipio)
	tag(enc, "xMun", Sanitizar(e.Municipio))
	tag(enc, "UF", e.UF)
	tag(enc, "CEP", nfce.SomenteDigitos(e.CEP))
	fechar(enc, "enderEmit")
	tag(enc, "IE", nfce.SomenteDigitos(e.IE))
	tag(enc, "CRT", e.CRT)
	fechar(enc, "emit")
}

func (s *ConstrutorXML) escreverDest(enc *xml.Encoder, nota *entity.NotaFiscal) {
	doc := nfce.SomenteDigitos(nota.DestCPFCNPJ)
	if doc == "" {
		return // consumidor não identificado: dest é opcional na NFC-e
	}
	abrir(enc, "dest")
	if len(doc) == 14 {
		tag(enc, "CNPJ", doc)
	} else {
		tag(enc, "CPF", doc)
	}
	tag(enc, "indIEDest", "9") // não contribuinte
	fechar(enc, "dest")
}

func (s *ConstrutorXML) escreverDet(enc *xml.Encoder, nItem int, item *entity.ItemNota) {
	det := xml.StartElement{
		Name: xml.Name{Local: "det"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "nItem"}, Value: strconv.Itoa(nItem)}},
	}
	_ = enc.EncodeToken(det)

	abrir(enc, "prod")
	tag(enc, "cProd", item.Codigo)
	tag(enc, "cEAN", "SEM GTIN")
	tag(enc, "xProd", Sanitizar(item.Descricao))
	tag(enc, "NCM", "00000000")
	tag(enc, "CFOP", item.CFOP)
	tag(enc, "uCom", "UN")
	tag(enc, "qCom", quantia(item.Quantidade))
	tag(enc, "vUnCom", valor(item.ValorUnitario))
	tag(enc, "vProd", valor(item.ValorTotal))
	tag(enc, "cEANTrib", "SEM GTIN")
	tag(enc, "uTrib", "UN")
	tag(enc, "qTrib", quantia(item.Quantidade))
	tag(enc, "vUnTrib", valor(item.ValorUnitario))
	tag(enc, "indTot", "1")
	fechar(enc, "prod")

	abrir(enc, "imposto")
	abrir(enc, "ICMS")
	abrir(enc, "ICMSSN102")
	tag(enc, "orig", "0")
	tag(enc, "CSOSN", item.CSOSN)
	fechar(enc, "ICMSSN102")
	fechar(enc, "ICMS")
	abrir(enc, "PIS")
	abrir(enc, "PISOutr")
	tag(enc, "CST", item.CSTPis)
	tag(enc, "vBC", "0.00")
	tag(enc, "pPIS", "0.00")
	tag(enc, "vPIS", "0.00")
	fechar(enc, "PISOutr")
	fechar(enc, "PIS")
	abrir(enc, "COFINS")
	abrir(enc, "COFINSOutr")
	tag(enc, "CST", item.CSTCofins)
	tag(enc, "vBC", "0.00")
	tag(enc, "pCOFINS", "0.00")
	tag(enc, "vCOFINS", "0.00")
	fechar(enc, "COFINSOutr")
	fechar(enc, "COFINS")
	fechar(enc, "imposto")

	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "det"}})
}

func (s *ConstrutorXML) escreverTotal(enc *xml.Encoder, t *entity.Totais) {
	abrir(enc, "total")
	abrir(enc, "ICMSTot")
	tag(enc, "vBC", "0.00")
	tag(enc, "vICMS", "0.00")
	tag(enc, "vICMSDeson", "0.00")
	tag(enc, "vFCP", "0.00")
	tag(enc, "vBCST", "0.00")
	tag(enc, "vST", "0.00")
	tag(enc, "vFCPST", "0.00")
	tag(enc, "vFCPSTRet", "0.00")
	tag(enc, "vProd", valor(t.VProd))
	tag(enc, "vFrete", "0.00")
	tag(enc, "vSeg", "0.00")
	tag(enc, "vDesc", "0.00")
	tag(enc, "vII", "0.00")
	tag(enc, "vIPI", "0.00")
	tag(enc, "vIPIDevol", "0.00")
	tag(enc, "vPIS", "0.00")
	tag(enc, "vCOFINS", "0.00")
	tag(enc, "vOutro", "0.00")
	tag(enc, "vNF", valor(t.VNF))
	fechar(enc, "ICMSTot")
	fechar(enc, "total")
}

func (s *ConstrutorXML) escreverPag(enc *xml.Encoder, p *entity.Pagamento) {
	abrir(enc, "pag")
	abrir(enc, "detPag")
	tag(enc, "indPag", "0") // pagamento à vista
	tag(enc, "tPag", p.Forma)
	tag(enc, "vPag", valor(p.VPag))
	fechar(enc, "detPag")
	if p.Troco.IsPositive() {
		tag(enc, "vTroco", valor(p.Troco))
	}
	fechar(enc, "pag")
}

// ── helpers ───────────────────────────────────────────────────────────────────

func abrir(enc *xml.Encoder, local string) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: local}})
}

func fechar(enc *xml.Encoder, local string) {
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: local}})
}

func tag(enc *xml.Encoder, local, value string) {
	abrir(enc, local)
	_ = enc.EncodeToken(xml.CharData(value))
	fechar(enc, local)
}

func valor(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}

func quantia(d decimal.Decimal) string {
	return d.Round(4).StringFixed(4)
}

var removeDiacriticos = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Sanitizar remove acentos e comprime espaços de campos de texto livre.
// Os validadores estaduais rejeitam caracteres fora do conjunto básico em
// alguns campos, então normalizamos na fonte.
func Sanitizar(s string) string {
	limpo, _, err := transform.String(removeDiacriticos, s)
	if err != nil {
		limpo = s
	}
	return strings.Join(strings.Fields(limpo), " ")
}
