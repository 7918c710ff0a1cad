package sefaz

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/beevik/etree"

	"github.com/pdvlabs/fiscal-api/internal/domain"
)

// Namespace do portal fiscal (payloads) e dos WSDLs v4.
const (
	nsPortalFiscal = "http://www.portalfiscal.inf.br/nfe"
	nsSoap12       = "http://www.w3.org/2003/05/soap-envelope"

	nsWsdlAutorizacao    = "http://www.portalfiscal.inf.br/nfe/wsdl/NFeAutorizacao4"
	nsWsdlRetAutorizacao = "http://www.portalfiscal.inf.br/nfe/wsdl/NFeRetAutorizacao4"
	nsWsdlConsulta       = "http://www.portalfiscal.inf.br/nfe/wsdl/NFeConsultaProtocolo4"
	nsWsdlStatusServico  = "http://www.portalfiscal.inf.br/nfe/wsdl/NFeStatusServico4"
	nsWsdlEvento         = "http://www.portalfiscal.inf.br/nfe/wsdl/NFeRecepcaoEvento4"
	nsWsdlInutilizacao   = "http://www.portalfiscal.inf.br/nfe/wsdl/NFeInutilizacao4"
)

// conjuntoEndpoints URLs dos serviços v4 de um ambiente (SVRS).
type conjuntoEndpoints struct {
	autorizacao    string
	retAutorizacao string
	consulta       string
	statusServico  string
	evento         string
	inutilizacao   string
}

var endpointsHomologacao = conjuntoEndpoints{
	autorizacao:    "https://nfce-homologacao.svrs.rs.gov.br/ws/NfeAutorizacao/NFeAutorizacao4.asmx",
	retAutorizacao: "https://nfce-homologacao.svrs.rs.gov.br/ws/NfeRetAutorizacao/NFeRetAutorizacao4.asmx",
	consulta:       "https://nfce-homologacao.svrs.rs.gov.br/ws/NfeConsulta/NfeConsulta4.asmx",
	statusServico:  "https://nfce-homologacao.svrs.rs.gov.br/ws/NfeStatusServico/NfeStatusServico4.asmx",
	evento:         "https://nfce-homologacao.svrs.rs.gov.br/ws/recepcaoevento/recepcaoevento4.asmx",
	inutilizacao:   "https://nfce-homologacao.svrs.rs.gov.br/ws/nfeinutilizacao/nfeinutilizacao4.asmx",
}

var endpointsProducao = conjuntoEndpoints{
	autorizacao:    "https://nfce.svrs.rs.gov.br/ws/NfeAutorizacao/NFeAutorizacao4.asmx",
	retAutorizacao: "https://nfce.svrs.rs.gov.br/ws/NfeRetAutorizacao/NFeRetAutorizacao4.asmx",
	consulta:       "https://nfce.svrs.rs.gov.br/ws/NfeConsulta/NfeConsulta4.asmx",
	statusServico:  "https://nfce.svrs.rs.gov.br/ws/NfeStatusServico/NfeStatusServico4.asmx",
	evento:         "https://nfce.svrs.rs.gov.br/ws/recepcaoevento/recepcaoevento4.asmx",
	inutilizacao:   "https://nfce.svrs.rs.gov.br/ws/nfeinutilizacao/nfeinutilizacao4.asmx",
}

// ── Cliente SOAP ──────────────────────────────────────────────────────────────

// ClienteSOAP implementa Transmissor contra os web services SOAP 1.2 da SEFAZ.
type ClienteSOAP struct {
	httpClient *http.Client
	cUF        string

	mu        sync.RWMutex
	tpAmb     string
	endpoints conjuntoEndpoints
}

// Opcoes do cliente SOAP.
type Opcoes struct {
	CUF     string        // código IBGE da UF (vai no consStatServ)
	TpAmb   string        // "1" produção | "2" homologação
	Timeout time.Duration // timeout compartilhado por chamada (padrão 30 s)
	// BaseURL substitui os endpoints dos dois ambientes (testes com httptest).
	BaseURL string
}

// NovoClienteSOAP constrói o cliente para o ambiente informado.
func NovoClienteSOAP(op Opcoes) *ClienteSOAP {
	timeout := op.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &ClienteSOAP{
		httpClient: &http.Client{Timeout: timeout},
		cUF:        op.CUF,
	}
	c.DefinirAmbiente(op.TpAmb)
	if op.BaseURL != "" {
		c.mu.Lock()
		c.endpoints = conjuntoEndpoints{
			autorizacao:    op.BaseURL,
			retAutorizacao: op.BaseURL,
			consulta:       op.BaseURL,
			statusServico:  op.BaseURL,
			evento:         op.BaseURL,
			inutilizacao:   op.BaseURL,
		}
		c.mu.Unlock()
	}
	return c
}

// DefinirAmbiente troca o conjunto de endpoints sem reconstruir o cliente.
func (c *ClienteSOAP) DefinirAmbiente(tpAmb string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tpAmb == "1" {
		c.tpAmb = "1"
		c.endpoints = endpointsProducao
		return
	}
	c.tpAmb = "2"
	c.endpoints = endpointsHomologacao
}

func (c *ClienteSOAP) ambiente() (string, conjuntoEndpoints) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tpAmb, c.endpoints
}

// ── Operações ─────────────────────────────────────────────────────────────────

// Autorizar envia o lote com a NFC-e assinada (indSinc=0: recebimento 103,
// autorização consultada depois pelo recibo).
func (c *ClienteSOAP) Autorizar(ctx context.Context, xmlAssinado []byte, chave string) (*Resposta, error) {
	_, eps := c.ambiente()
	idLote := time.Now().UnixNano() % 1_000_000_000_000_000
	payload := fmt.Sprintf(
		`<enviNFe xmlns=%q versao="4.00"><idLote>%d</idLote><indSinc>0</indSinc>%s</enviNFe>`,
		nsPortalFiscal, idLote, xmlAssinado)

	raw, err := c.chamar(ctx, eps.autorizacao, nsWsdlAutorizacao, payload)
	if err != nil {
		return nil, err
	}
	resp := extrairResposta(raw, false)
	resp.Sucesso = resp.CStat == CStatLoteRecebido
	if resp.ChaveAcesso == "" {
		resp.ChaveAcesso = chave
	}
	return resp, nil
}

// ConsultarRecibo consulta o resultado do processamento do lote.
func (c *ClienteSOAP) ConsultarRecibo(ctx context.Context, recibo string) (*Resposta, error) {
	tpAmb, eps := c.ambiente()
	payload := fmt.Sprintf(
		`<consReciNFe xmlns=%q versao="4.00"><tpAmb>%s</tpAmb><nRec>%s</nRec></consReciNFe>`,
		nsPortalFiscal, tpAmb, recibo)

	raw, err := c.chamar(ctx, eps.retAutorizacao, nsWsdlRetAutorizacao, payload)
	if err != nil {
		return nil, err
	}
	resp := extrairResposta(raw, true)
	resp.Sucesso = resp.CStat == CStatAutorizado
	resp.Recibo = recibo
	return resp, nil
}

// ConsultarChave consulta a situação atual de um documento pela chave.
func (c *ClienteSOAP) ConsultarChave(ctx context.Context, chave string) (*Resposta, error) {
	tpAmb, eps := c.ambiente()
	payload := fmt.Sprintf(
		`<consSitNFe xmlns=%q versao="4.00"><tpAmb>%s</tpAmb><xServ>CONSULTAR</xServ><chNFe>%s</chNFe></consSitNFe>`,
		nsPortalFiscal, tpAmb, chave)

	raw, err := c.chamar(ctx, eps.consulta, nsWsdlConsulta, payload)
	if err != nil {
		return nil, err
	}
	resp := extrairResposta(raw, true)
	resp.Sucesso = resp.CStat == CStatAutorizado
	if resp.ChaveAcesso == "" {
		resp.ChaveAcesso = chave
	}
	return resp, nil
}

// StatusServico consulta a disponibilidade do autorizador e mede o tempo de resposta.
func (c *ClienteSOAP) StatusServico(ctx context.Context) (*RespostaStatus, error) {
	tpAmb, eps := c.ambiente()
	payload := fmt.Sprintf(
		`<consStatServ xmlns=%q versao="4.00"><tpAmb>%s</tpAmb><cUF>%s</cUF><xServ>STATUS</xServ></consStatServ>`,
		nsPortalFiscal, tpAmb, c.cUF)

	inicio := time.Now()
	raw, err := c.chamar(ctx, eps.statusServico, nsWsdlStatusServico, payload)
	decorrido := time.Since(inicio)
	if err != nil {
		return nil, err
	}
	resp := extrairResposta(raw, false)
	return &RespostaStatus{
		Online:        resp.CStat == CStatServicoEmOperacao,
		CStat:         resp.CStat,
		XMotivo:       resp.XMotivo,
		TempoResposta: decorrido,
		Raw:           raw,
	}, nil
}

// EnviarEvento envia um evento assinado embrulhado no lote de eventos.
func (c *ClienteSOAP) EnviarEvento(ctx context.Context, xmlEventoAssinado []byte) (*Resposta, error) {
	_, eps := c.ambiente()
	idLote := time.Now().UnixNano() % 1_000_000_000_000_000
	payload := fmt.Sprintf(
		`<envEvento xmlns=%q versao="1.00"><idLote>%d</idLote>%s</envEvento>`,
		nsPortalFiscal, idLote, xmlEventoAssinado)

	raw, err := c.chamar(ctx, eps.evento, nsWsdlEvento, payload)
	if err != nil {
		return nil, err
	}
	resp := extrairResposta(raw, true)
	resp.Sucesso = EventosAceitos[resp.CStat]
	return resp, nil
}

// Inutilizar envia o pedido de inutilização de faixa já assinado.
func (c *ClienteSOAP) Inutilizar(ctx context.Context, xmlInutAssinado []byte) (*Resposta, error) {
	_, eps := c.ambiente()
	raw, err := c.chamar(ctx, eps.inutilizacao, nsWsdlInutilizacao, string(xmlInutAssinado))
	if err != nil {
		return nil, err
	}
	resp := extrairResposta(raw, false)
	resp.Sucesso = resp.CStat == CStatInutilizacaoHomologada
	return resp, nil
}

// ── Envelope e transporte ─────────────────────────────────────────────────────

type soapEnvelope struct {
	XMLName   xml.Name `xml:"soap12:Envelope"`
	XmlnsSoap string   `xml:"xmlns:soap12,attr"`
	Body      soapBody `xml:"soap12:Body"`
}

type soapBody struct {
	DadosMsg nfeDadosMsg `xml:"nfeDadosMsg"`
}

type nfeDadosMsg struct {
	Xmlns    string `xml:"xmlns,attr"`
	Conteudo string `xml:",innerxml"` // payload já serializado, escrito verbatim
}

// chamar executa o POST SOAP 1.2 e devolve o corpo bruto da resposta.
// Timeout ou falha de rede viram domain.ErrTransporte; status HTTP fora de
// 2xx idem (indisponibilidade do serviço, não rejeição fiscal).
func (c *ClienteSOAP) chamar(ctx context.Context, url, wsdlNS, payload string) ([]byte, error) {
	envelope := soapEnvelope{
		XmlnsSoap: nsSoap12,
		Body: soapBody{
			DadosMsg: nfeDadosMsg{Xmlns: wsdlNS, Conteudo: payload},
		},
	}
	corpo, err := xml.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("sefaz: serializar envelope: %w", err)
	}
	corpo = append([]byte(xml.Header), corpo...)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(corpo))
	if err != nil {
		return nil, fmt.Errorf("sefaz: criar request: %w", err)
	}
	req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransporte, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // max 1 MB
	if err != nil {
		return nil, fmt.Errorf("%w: ler resposta: %v", domain.ErrTransporte, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: HTTP %d do serviço SEFAZ", domain.ErrTransporte, resp.StatusCode)
	}
	return raw, nil
}

// extrairResposta desempacota cStat/xMotivo/nRec/nProt/chNFe de qualquer
// retorno SEFAZ, ignorando prefixos de namespace. preferirProtocolo usa o
// cStat do protocolo/evento interno (infProt/infEvento) quando presente — é
// ele que diz se o documento foi autorizado, não o cStat do lote.
func extrairResposta(raw []byte, preferirProtocolo bool) *Resposta {
	r := &Resposta{Raw: raw}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		r.XMotivo = "resposta SOAP não parseável: " + resumo(raw)
		return r
	}

	r.CStat = texto(doc, "//cStat")
	r.XMotivo = texto(doc, "//xMotivo")
	r.Recibo = texto(doc, "//infRec/nRec")
	r.Protocolo = texto(doc, "//infProt/nProt")
	r.ChaveAcesso = texto(doc, "//infProt/chNFe")

	if preferirProtocolo {
		for _, caminho := range []string{"//infProt", "//infEvento"} {
			if el := doc.FindElement(caminho); el != nil {
				if cs := el.FindElement("cStat"); cs != nil {
					r.CStat = strings.TrimSpace(cs.Text())
				}
				if xm := el.FindElement("xMotivo"); xm != nil {
					r.XMotivo = strings.TrimSpace(xm.Text())
				}
				if np := el.FindElement("nProt"); np != nil {
					r.Protocolo = strings.TrimSpace(np.Text())
				}
				break
			}
		}
	}
	return r
}

func texto(doc *etree.Document, caminho string) string {
	if el := doc.FindElement(caminho); el != nil {
		return strings.TrimSpace(el.Text())
	}
	return ""
}

func resumo(raw []byte) string {
	const max = 200
	s := string(raw)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
