package signer

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdvlabs/fiscal-api/internal/domain"
	"github.com/pdvlabs/fiscal-api/pkg/nfce"
)

// geraCertificadoPEM cria um certificado autoassinado e grava o par PEM em
// arquivos temporários, devolvendo os caminhos.
func geraCertificadoPEM(t *testing.T, notBefore, notAfter time.Time) (certPath, keyPath string, priv *rsa.PrivateKey) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := x509.Certificate{
		SerialNumber: big.NewInt(0x1B2C3),
		Subject: pkix.Name{
			CommonName:   "MERCADO SAO JOAO LTDA:12345678000195",
			Organization: []string{"ICP-Brasil"},
		},
		Issuer:                pkix.Name{CommonName: "AC TESTE"},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)

	dir := t.TempDir()
	certPath = filepath.Join(dir, "cert.pem")
	keyPath = filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(
		&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(
		&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)}), 0o600))
	return certPath, keyPath, priv
}

func materialValido(t *testing.T) nfce.MaterialCertificado {
	t.Helper()
	certPath, keyPath, _ := geraCertificadoPEM(t,
		time.Now().Add(-time.Hour), time.Now().Add(365*24*time.Hour))
	return nfce.MaterialCertificado{Caminho: certPath, CaminhoChave: keyPath}
}

const xmlParaAssinar = `<NFe xmlns="http://www.portalfiscal.inf.br/nfe"><infNFe Id="NFe43250812345678000195650010000001231123456783" versao="4.00"><ide><cUF>43</cUF></ide></infNFe></NFe>`

func TestCarregarCertificado_PEM(t *testing.T) {
	svc := NovoServicoAssinatura()
	info, err := svc.CarregarCertificado(materialValido(t))
	require.NoError(t, err)
	assert.Equal(t, "MERCADO SAO JOAO LTDA:12345678000195", info.Titular)
	assert.Equal(t, "1b2c3", info.NumeroSerie)
	assert.True(t, info.ValidoAte.After(time.Now()))
}

func TestCarregarCertificado_Vencido(t *testing.T) {
	certPath, keyPath, _ := geraCertificadoPEM(t,
		time.Now().Add(-48*time.Hour), time.Now().Add(-24*time.Hour))
	svc := NovoServicoAssinatura()
	_, err := svc.CarregarCertificado(nfce.MaterialCertificado{Caminho: certPath, CaminhoChave: keyPath})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCertificado))
}

func TestCarregarCertificado_ArquivoInexistente(t *testing.T) {
	svc := NovoServicoAssinatura()
	_, err := svc.CarregarCertificado(nfce.MaterialCertificado{Caminho: "/nao/existe.pem"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCertificado))
}

func TestAssinar_SemCertificado(t *testing.T) {
	svc := NovoServicoAssinatura()
	_, err := svc.Assinar([]byte(xmlParaAssinar), "NFe43250812345678000195650010000001231123456783")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCertificado))
}

func TestAssinar_EstruturaDaAssinatura(t *testing.T) {
	svc := NovoServicoAssinatura()
	_, err := svc.CarregarCertificado(materialValido(t))
	require.NoError(t, err)

	refID := "NFe43250812345678000195650010000001231123456783"
	assinado, err := svc.Assinar([]byte(xmlParaAssinar), refID)
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(assinado))

	// Signature entra como irmão de infNFe, dentro de NFe
	sig := doc.FindElement("/NFe/Signature")
	require.NotNil(t, sig, "Signature deve ser filho de NFe")
	assert.NotNil(t, doc.FindElement("/NFe/infNFe"), "infNFe permanece intacto")

	ref := sig.FindElement("SignedInfo/Reference")
	require.NotNil(t, ref)
	assert.Equal(t, "#"+refID, ref.SelectAttrValue("URI", ""))

	// DigestValue corresponde ao SHA-256 do documento canonicalizado
	canonico, err := canonicalizar([]byte(xmlParaAssinar))
	require.NoError(t, err)
	esperado := sha256.Sum256(canonico)
	assert.Equal(t, base64.StdEncoding.EncodeToString(esperado[:]),
		ref.FindElement("DigestValue").Text())

	assert.NotEmpty(t, sig.FindElement("SignatureValue").Text())
	assert.NotEmpty(t, sig.FindElement("KeyInfo/X509Data/X509Certificate").Text())
}

func TestAssinar_AssinaturaVerificavel(t *testing.T) {
	certPath, keyPath, priv := geraCertificadoPEM(t,
		time.Now().Add(-time.Hour), time.Now().Add(24*time.Hour))
	svc := NovoServicoAssinatura()
	_, err := svc.CarregarCertificado(nfce.MaterialCertificado{Caminho: certPath, CaminhoChave: keyPath})
	require.NoError(t, err)

	refID := "NFe43250812345678000195650010000001231123456783"
	assinado, err := svc.Assinar([]byte(xmlParaAssinar), refID)
	require.NoError(t, err)

	// reconstrói o SignedInfo canônico a partir do digest e verifica a RSA
	canonico, err := canonicalizar([]byte(xmlParaAssinar))
	require.NoError(t, err)
	digest := sha256.Sum256(canonico)
	signedInfo := montarSignedInfo(refID, base64.StdEncoding.EncodeToString(digest[:]))
	canonicoSI, err := canonicalizar([]byte(signedInfo))
	require.NoError(t, err)
	hashSI := sha256.Sum256(canonicoSI)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(assinado))
	valorB64 := doc.FindElement("//SignatureValue").Text()
	valor, err := base64.StdEncoding.DecodeString(valorB64)
	require.NoError(t, err)
	assert.NoError(t, rsa.VerifyPKCS1v15(&priv.PublicKey, crypto.SHA256, hashSI[:], valor))
}

func TestAssinar_RefIDInexistente(t *testing.T) {
	svc := NovoServicoAssinatura()
	_, err := svc.CarregarCertificado(materialValido(t))
	require.NoError(t, err)

	_, err = svc.Assinar([]byte(xmlParaAssinar), "NFe000")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAssinatura))
}

func TestValidarELimpar(t *testing.T) {
	svc := NovoServicoAssinatura()
	_, err := svc.Validar()
	assert.True(t, errors.Is(err, domain.ErrCertificado))

	_, err = svc.CarregarCertificado(materialValido(t))
	require.NoError(t, err)
	info, err := svc.Validar()
	require.NoError(t, err)
	assert.NotEmpty(t, info.Titular)

	svc.Limpar()
	_, err = svc.Validar()
	assert.True(t, errors.Is(err, domain.ErrCertificado))
}

func TestVerificarVencimento(t *testing.T) {
	certPath, keyPath, _ := geraCertificadoPEM(t,
		time.Now().Add(-time.Hour), time.Now().Add(20*24*time.Hour))
	svc := NovoServicoAssinatura()
	_, err := svc.CarregarCertificado(nfce.MaterialCertificado{Caminho: certPath, CaminhoChave: keyPath})
	require.NoError(t, err)

	status, err := svc.VerificarVencimento(30)
	require.NoError(t, err)
	assert.True(t, status.ProximoVencimento)
	assert.InDelta(t, 19, status.DiasRestantes, 1)

	status, err = svc.VerificarVencimento(10)
	require.NoError(t, err)
	assert.False(t, status.ProximoVencimento)
}
