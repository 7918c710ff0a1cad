package sefaz

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdvlabs/fiscal-api/internal/domain"
)

// servidorSOAP devolve o corpo informado e captura o request recebido.
func servidorSOAP(t *testing.T, corpo string, capturado *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if capturado != nil {
			*capturado = string(raw)
		}
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.Header.Get("Content-Type"), "application/soap+xml")
		w.Header().Set("Content-Type", "application/soap+xml; charset=utf-8")
		_, _ = w.Write([]byte(corpo))
	}))
}

func clienteDeTeste(baseURL string) *ClienteSOAP {
	return NovoClienteSOAP(Opcoes{CUF: "43", TpAmb: "2", Timeout: 2 * time.Second, BaseURL: baseURL})
}

const respostaStatus107 = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
 <soap:Body>
  <nfeResultMsg xmlns="http://www.portalfiscal.inf.br/nfe/wsdl/NFeStatusServico4">
   <retConsStatServ xmlns="http://www.portalfiscal.inf.br/nfe" versao="4.00">
    <tpAmb>2</tpAmb><verAplic>SVRS2025</verAplic>
    <cStat>107</cStat><xMotivo>Servico em Operacao</xMotivo><cUF>43</cUF>
   </retConsStatServ>
  </nfeResultMsg>
 </soap:Body>
</soap:Envelope>`

func TestStatusServico_Online(t *testing.T) {
	var req string
	srv := servidorSOAP(t, respostaStatus107, &req)
	defer srv.Close()

	resp, err := clienteDeTeste(srv.URL).StatusServico(context.Background())
	require.NoError(t, err)
	assert.True(t, resp.Online)
	assert.Equal(t, "107", resp.CStat)
	assert.Equal(t, "Servico em Operacao", resp.XMotivo)
	assert.Greater(t, resp.TempoResposta, time.Duration(0))

	assert.Contains(t, req, "<consStatServ")
	assert.Contains(t, req, "<cUF>43</cUF>")
	assert.Contains(t, req, "<tpAmb>2</tpAmb>")
}

func TestStatusServico_Paralisado(t *testing.T) {
	corpo := strings.ReplaceAll(respostaStatus107, "<cStat>107</cStat>", "<cStat>108</cStat>")
	srv := servidorSOAP(t, corpo, nil)
	defer srv.Close()

	resp, err := clienteDeTeste(srv.URL).StatusServico(context.Background())
	require.NoError(t, err)
	assert.False(t, resp.Online)
	assert.Equal(t, "108", resp.CStat)
}

const respostaLote103 = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
 <soap:Body>
  <nfeResultMsg xmlns="http://www.portalfiscal.inf.br/nfe/wsdl/NFeAutorizacao4">
   <retEnviNFe xmlns="http://www.portalfiscal.inf.br/nfe" versao="4.00">
    <tpAmb>2</tpAmb><cStat>103</cStat><xMotivo>Lote recebido com sucesso</xMotivo>
    <infRec><nRec>430000012345678</nRec><tMed>1</tMed></infRec>
   </retEnviNFe>
  </nfeResultMsg>
 </soap:Body>
</soap:Envelope>`

func TestAutorizar_LoteRecebido(t *testing.T) {
	var req string
	srv := servidorSOAP(t, respostaLote103, &req)
	defer srv.Close()

	xmlAssinado := []byte(`<NFe xmlns="http://www.portalfiscal.inf.br/nfe"><infNFe Id="NFe123"/></NFe>`)
	resp, err := clienteDeTeste(srv.URL).Autorizar(context.Background(), xmlAssinado, "chave-teste")
	require.NoError(t, err)
	assert.True(t, resp.Sucesso)
	assert.Equal(t, "103", resp.CStat)
	assert.Equal(t, "430000012345678", resp.Recibo)
	assert.Equal(t, "chave-teste", resp.ChaveAcesso)

	assert.Contains(t, req, "<enviNFe")
	assert.Contains(t, req, "<indSinc>0</indSinc>")
	assert.Contains(t, req, `<infNFe Id="NFe123"/>`, "o XML assinado vai verbatim dentro do lote")
}

func TestAutorizar_Rejeicao(t *testing.T) {
	corpo := `<?xml version="1.0"?><soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope"><soap:Body>
	 <retEnviNFe xmlns="http://www.portalfiscal.inf.br/nfe"><cStat>539</cStat><xMotivo>Rejeicao: duplicidade de NF-e</xMotivo></retEnviNFe>
	</soap:Body></soap:Envelope>`
	srv := servidorSOAP(t, corpo, nil)
	defer srv.Close()

	resp, err := clienteDeTeste(srv.URL).Autorizar(context.Background(), []byte("<NFe/>"), "chave")
	require.NoError(t, err, "rejeição fiscal não é erro de transporte")
	assert.False(t, resp.Sucesso)
	assert.Equal(t, "539", resp.CStat)
	assert.Contains(t, resp.XMotivo, "duplicidade")
}

const respostaRecibo100 = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
 <soap:Body>
  <retConsReciNFe xmlns="http://www.portalfiscal.inf.br/nfe" versao="4.00">
   <tpAmb>2</tpAmb><cStat>104</cStat><xMotivo>Lote processado</xMotivo>
   <protNFe versao="4.00">
    <infProt>
     <tpAmb>2</tpAmb><chNFe>43250812345678000195650010000001231123456783</chNFe>
     <dhRecbto>2025-08-15T14:30:05-03:00</dhRecbto>
     <nProt>143250000012345</nProt><digVal>abc=</digVal>
     <cStat>100</cStat><xMotivo>Autorizado o uso da NF-e</xMotivo>
    </infProt>
   </protNFe>
  </retConsReciNFe>
 </soap:Body>
</soap:Envelope>`

func TestConsultarRecibo_Autorizado(t *testing.T) {
	srv := servidorSOAP(t, respostaRecibo100, nil)
	defer srv.Close()

	resp, err := clienteDeTeste(srv.URL).ConsultarRecibo(context.Background(), "430000012345678")
	require.NoError(t, err)
	assert.True(t, resp.Sucesso)
	assert.Equal(t, "100", resp.CStat, "usa o cStat do protocolo, não o 104 do lote")
	assert.Equal(t, "143250000012345", resp.Protocolo)
	assert.Equal(t, "43250812345678000195650010000001231123456783", resp.ChaveAcesso)
	assert.Equal(t, "430000012345678", resp.Recibo)
}

func TestConsultarRecibo_RejeicaoNoProtocolo(t *testing.T) {
	corpo := strings.ReplaceAll(respostaRecibo100, "<cStat>100</cStat>", "<cStat>204</cStat>")
	corpo = strings.ReplaceAll(corpo, "Autorizado o uso da NF-e", "Rejeicao: Duplicidade de NF-e")
	srv := servidorSOAP(t, corpo, nil)
	defer srv.Close()

	resp, err := clienteDeTeste(srv.URL).ConsultarRecibo(context.Background(), "430000012345678")
	require.NoError(t, err)
	assert.False(t, resp.Sucesso)
	assert.Equal(t, "204", resp.CStat)
}

func TestEnviarEvento_Registrado(t *testing.T) {
	corpo := `<?xml version="1.0"?><soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope"><soap:Body>
	 <retEnvEvento xmlns="http://www.portalfiscal.inf.br/nfe" versao="1.00">
	  <cStat>128</cStat><xMotivo>Lote de Evento Processado</xMotivo>
	  <retEvento versao="1.00"><infEvento>
	   <cStat>135</cStat><xMotivo>Evento registrado e vinculado a NF-e</xMotivo>
	   <nProt>143250000054321</nProt>
	  </infEvento></retEvento>
	 </retEnvEvento>
	</soap:Body></soap:Envelope>`
	var req string
	srv := servidorSOAP(t, corpo, &req)
	defer srv.Close()

	resp, err := clienteDeTeste(srv.URL).EnviarEvento(context.Background(), []byte("<evento/>"))
	require.NoError(t, err)
	assert.True(t, resp.Sucesso)
	assert.Equal(t, "135", resp.CStat)
	assert.Equal(t, "143250000054321", resp.Protocolo)
	assert.Contains(t, req, "<envEvento")
}

func TestInutilizar_Homologada(t *testing.T) {
	corpo := `<?xml version="1.0"?><soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope"><soap:Body>
	 <retInutNFe xmlns="http://www.portalfiscal.inf.br/nfe" versao="4.00"><infInut>
	  <cStat>102</cStat><xMotivo>Inutilizacao de numero homologado</xMotivo>
	  <nProt>143250000099999</nProt>
	 </infInut></retInutNFe>
	</soap:Body></soap:Envelope>`
	srv := servidorSOAP(t, corpo, nil)
	defer srv.Close()

	resp, err := clienteDeTeste(srv.URL).Inutilizar(context.Background(), []byte("<inutNFe/>"))
	require.NoError(t, err)
	assert.True(t, resp.Sucesso)
	assert.Equal(t, "102", resp.CStat)
}

func TestChamar_HTTPForaDe2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "indisponivel", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := clienteDeTeste(srv.URL).StatusServico(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTransporte))
}

func TestChamar_FalhaDeRede(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // porta fechada: connection refused

	_, err := clienteDeTeste(url).StatusServico(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTransporte))
}

func TestChamar_ContextoCancelado(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := clienteDeTeste(srv.URL).StatusServico(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTransporte))
}

func TestExtrairResposta_NaoParseavel(t *testing.T) {
	r := extrairResposta([]byte("isto nao e xml <"), false)
	assert.Empty(t, r.CStat)
	assert.Contains(t, r.XMotivo, "não parseável")
}

func TestDefinirAmbiente_TrocaEndpoints(t *testing.T) {
	c := NovoClienteSOAP(Opcoes{CUF: "43", TpAmb: "2"})
	_, eps := c.ambiente()
	assert.Contains(t, eps.autorizacao, "nfce-homologacao.svrs.rs.gov.br")

	c.DefinirAmbiente("1")
	tpAmb, eps := c.ambiente()
	assert.Equal(t, "1", tpAmb)
	assert.Contains(t, eps.autorizacao, "https://nfce.svrs.rs.gov.br")
}
