// Serviço de assinatura digital enveloped (XML-DSig) para NFC-e, eventos e
// inutilização. Injeta <Signature> como irmão do elemento referenciado.

package signer

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/beevik/etree"
	"github.com/ucarion/c14n"

	"github.com/pdvlabs/fiscal-api/internal/domain"
	"github.com/pdvlabs/fiscal-api/pkg/nfce"
)

// ServicoAssinatura implementa nfce.Assinador com estado: o certificado é
// carregado uma vez na inicialização e reutilizado em todas as assinaturas.
type ServicoAssinatura struct {
	mu   sync.RWMutex
	cert tls.Certificate
	info *nfce.InfoCertificado
}

// NovoServicoAssinatura cria o serviço sem certificado carregado.
func NovoServicoAssinatura() *ServicoAssinatura {
	return &ServicoAssinatura{}
}

// CarregarCertificado carrega o A1 do emitente e valida a janela de vigência.
// Arquivos .p12/.pfx usam a senha; qualquer outra extensão é tratada como PEM.
func (s *ServicoAssinatura) CarregarCertificado(material nfce.MaterialCertificado) (*nfce.InfoCertificado, error) {
	var (
		cert tls.Certificate
		err  error
	)
	caminho := strings.ToLower(material.Caminho)
	if strings.HasSuffix(caminho, ".p12") || strings.HasSuffix(caminho, ".pfx") {
		cert, err = CarregarDeP12(material.Caminho, material.Senha)
	} else {
		cert, err = CarregarDePEM(material.Caminho, material.CaminhoChave)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCertificado, err)
	}
	if cert.Leaf == nil {
		if len(cert.Certificate) == 0 {
			return nil, fmt.Errorf("%w: arquivo sem certificado", domain.ErrCertificado)
		}
		folha, perr := x509.ParseCertificate(cert.Certificate[0])
		if perr != nil {
			return nil, fmt.Errorf("%w: parsear certificado: %v", domain.ErrCertificado, perr)
		}
		cert.Leaf = folha
	}
	if _, ok := cert.PrivateKey.(*rsa.PrivateKey); !ok {
		return nil, fmt.Errorf("%w: a chave privada deve ser RSA", domain.ErrCertificado)
	}

	agora := time.Now()
	if agora.Before(cert.Leaf.NotBefore) {
		return nil, fmt.Errorf("%w: certificado ainda não vigente (início %s)",
			domain.ErrCertificado, cert.Leaf.NotBefore.Format("2006-01-02"))
	}
	if agora.After(cert.Leaf.NotAfter) {
		return nil, fmt.Errorf("%w: certificado vencido em %s",
			domain.ErrCertificado, cert.Leaf.NotAfter.Format("2006-01-02"))
	}

	info := extrairInfo(cert.Leaf)
	s.mu.Lock()
	s.cert = cert
	s.info = info
	s.mu.Unlock()
	return info, nil
}

// Assinar gera a assinatura enveloped referenciando o elemento de Id refID e
// injeta <Signature> como irmão dele. Falha com ErrCertificado se nada estiver
// carregado e ErrAssinatura em qualquer falha criptográfica.
func (s *ServicoAssinatura) Assinar(xmlDoc []byte, refID string) ([]byte, error) {
	s.mu.RLock()
	cert := s.cert
	carregado := s.info != nil
	s.mu.RUnlock()
	if !carregado {
		return nil, fmt.Errorf("%w: nenhum certificado carregado", domain.ErrCertificado)
	}
	if len(xmlDoc) == 0 {
		return nil, fmt.Errorf("%w: documento vazio", domain.ErrAssinatura)
	}
	priv := cert.PrivateKey.(*rsa.PrivateKey)

	// 1) Digest C14N do documento (Reference URI="#refID")
	canonico, err := canonicalizar(xmlDoc)
	if err != nil {
		return nil, fmt.Errorf("%w: canonicalizar documento: %v", domain.ErrAssinatura, err)
	}
	digest := sha256.Sum256(canonico)
	digestB64 := base64.StdEncoding.EncodeToString(digest[:])

	// 2) SignedInfo canonicalizado e assinado com RSA-SHA256
	signedInfo := montarSignedInfo(refID, digestB64)
	canonicoSI, err := canonicalizar([]byte(signedInfo))
	if err != nil {
		return nil, fmt.Errorf("%w: canonicalizar SignedInfo: %v", domain.ErrAssinatura, err)
	}
	hashSI := sha256.Sum256(canonicoSI)
	valorAssinatura, err := rsa.SignPKCS1v15(nil, priv, crypto.SHA256, hashSI[:])
	if err != nil {
		return nil, fmt.Errorf("%w: assinar SignedInfo: %v", domain.ErrAssinatura, err)
	}

	// 3) KeyInfo com o certificado e injeção no documento
	assinatura := montarSignature(signedInfo,
		base64.StdEncoding.EncodeToString(valorAssinatura),
		base64.StdEncoding.EncodeToString(cert.Leaf.Raw))
	return injetarAssinatura(xmlDoc, refID, assinatura)
}

// Validar devolve os dados do certificado carregado; erro se ausente ou vencido.
func (s *ServicoAssinatura) Validar() (*nfce.InfoCertificado, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.info == nil {
		return nil, fmt.Errorf("%w: nenhum certificado carregado", domain.ErrCertificado)
	}
	if time.Now().After(s.info.ValidoAte) {
		return nil, fmt.Errorf("%w: certificado vencido em %s",
			domain.ErrCertificado, s.info.ValidoAte.Format("2006-01-02"))
	}
	return s.info, nil
}

// VerificarVencimento informa quantos dias faltam para o vencimento.
func (s *ServicoAssinatura) VerificarVencimento(diasAlerta int) (nfce.StatusVencimento, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.info == nil {
		return nfce.StatusVencimento{}, fmt.Errorf("%w: nenhum certificado carregado", domain.ErrCertificado)
	}
	dias := int(time.Until(s.info.ValidoAte).Hours() / 24)
	return nfce.StatusVencimento{
		ProximoVencimento: dias <= diasAlerta,
		DiasRestantes:     dias,
	}, nil
}

// Limpar descarta o certificado carregado.
func (s *ServicoAssinatura) Limpar() {
	s.mu.Lock()
	s.cert = tls.Certificate{}
	s.info = nil
	s.mu.Unlock()
}

var _ nfce.Assinador = (*ServicoAssinatura)(nil)

// ── assinatura XML ────────────────────────────────────────────────────────────

func canonicalizar(dados []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(dados))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

func montarSignedInfo(refID, digestB64 string) string {
	var sb strings.Builder
	sb.WriteString(`<SignedInfo xmlns="` + NamespaceDS + `">`)
	sb.WriteString(`<CanonicalizationMethod Algorithm="` + AlgC14N + `"/>`)
	sb.WriteString(`<SignatureMethod Algorithm="` + AlgRSASHA256 + `"/>`)
	sb.WriteString(`<Reference URI="#` + refID + `">`)
	sb.WriteString(`<Transforms><Transform Algorithm="` + TransformEnveloped + `"/>`)
	sb.WriteString(`<Transform Algorithm="` + AlgC14N + `"/></Transforms>`)
	sb.WriteString(`<DigestMethod Algorithm="` + AlgSHA256 + `"/>`)
	sb.WriteString(`<DigestValue>` + digestB64 + `</DigestValue>`)
	sb.WriteString(`</Reference>`)
	sb.WriteString(`</SignedInfo>`)
	return sb.String()
}

func montarSignature(signedInfo, valorB64, certB64 string) string {
	var sb strings.Builder
	sb.WriteString(`<Signature xmlns="` + NamespaceDS + `">`)
	sb.WriteString(signedInfo)
	sb.WriteString(`<SignatureValue>` + valorB64 + `</SignatureValue>`)
	sb.WriteString(`<KeyInfo><X509Data><X509Certificate>` + certB64 + `</X509Certificate></X509Data></KeyInfo>`)
	sb.WriteString(`</Signature>`)
	return sb.String()
}

// injetarAssinatura insere <Signature> como irmão do elemento de Id refID,
// ao final do pai (layout: Signature depois de infNFe/infEvento/infInut).
func injetarAssinatura(xmlDoc []byte, refID, assinatura string) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlDoc); err != nil {
		return nil, fmt.Errorf("%w: parsear documento: %v", domain.ErrAssinatura, err)
	}
	alvo := doc.FindElement(fmt.Sprintf("//*[@Id='%s']", refID))
	if alvo == nil {
		return nil, fmt.Errorf("%w: elemento de Id %q não encontrado", domain.ErrAssinatura, refID)
	}
	pai := alvo.Parent()
	if pai == nil {
		return nil, fmt.Errorf("%w: elemento de Id %q sem pai para receber a assinatura", domain.ErrAssinatura, refID)
	}

	sigDoc := etree.NewDocument()
	if err := sigDoc.ReadFromString(assinatura); err != nil {
		return nil, fmt.Errorf("%w: parsear Signature: %v", domain.ErrAssinatura, err)
	}
	pai.AddChild(sigDoc.Root())

	var out bytes.Buffer
	if _, err := doc.WriteTo(&out); err != nil {
		return nil, fmt.Errorf("%w: serializar documento assinado: %v", domain.ErrAssinatura, err)
	}
	return out.Bytes(), nil
}
