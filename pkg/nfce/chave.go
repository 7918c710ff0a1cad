// Package nfce contém regras de composição da NFC-e (modelo 65) alinhadas ao
// Manual de Orientação do Contribuinte: chave de acesso, dígito verificador,
// QR Code e catálogos fiscais.
package nfce

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// Comprimentos fixos dos campos da chave de acesso (44 dígitos no total).
const (
	LenChave = 44

	lenCUF    = 2
	lenAAMM   = 4
	lenCNPJ   = 14
	lenModelo = 2
	lenSerie  = 3
	lenNumero = 9
	lenTpEmis = 1
	lenCNF    = 8
)

// CamposChave agrupa os campos da chave de acesso na ordem fixada pelo layout:
// cUF + AAMM + CNPJ + mod + série + nNF + tpEmis + cNF + cDV.
type CamposChave struct {
	CUF    string // código IBGE da UF (2 dígitos)
	AAMM   string // ano e mês da emissão (AAMM)
	CNPJ   string // CNPJ do emitente (14 dígitos, aceita pontuação)
	Modelo string // "65" = NFC-e
	Serie  string // série do documento (até 3 dígitos)
	Numero int64  // número do documento (nNF, até 9 dígitos)
	TpEmis string // "1" = normal, "9" = contingência off-line
	CNF    string // código numérico aleatório (8 dígitos)
}

// MontarChave compõe a chave de acesso de 44 dígitos, calculando o dígito
// verificador ao final. Retorna erro se algum campo não couber no layout.
func MontarChave(c CamposChave) (string, error) {
	cuf, err := campoNumerico("cUF", c.CUF, lenCUF)
	if err != nil {
		return "", err
	}
	aamm, err := campoNumerico("AAMM", c.AAMM, lenAAMM)
	if err != nil {
		return "", err
	}
	cnpj, err := campoNumerico("CNPJ", SomenteDigitos(c.CNPJ), lenCNPJ)
	if err != nil {
		return "", err
	}
	modelo, err := campoNumerico("modelo", c.Modelo, lenModelo)
	if err != nil {
		return "", err
	}
	serie, err := campoNumerico("série", c.Serie, lenSerie)
	if err != nil {
		return "", err
	}
	if c.Numero <= 0 || c.Numero > 999_999_999 {
		return "", fmt.Errorf("nfce: nNF fora do intervalo 1..999999999: %d", c.Numero)
	}
	numero := fmt.Sprintf("%0*d", lenNumero, c.Numero)
	tpEmis, err := campoNumerico("tpEmis", c.TpEmis, lenTpEmis)
	if err != nil {
		return "", err
	}
	cnf, err := campoNumerico("cNF", c.CNF, lenCNF)
	if err != nil {
		return "", err
	}

	base := cuf + aamm + cnpj + modelo + serie + numero + tpEmis + cnf
	dv, err := CalcularDV(base)
	if err != nil {
		return "", err
	}
	return base + string(dv), nil
}

// CalcularDV calcula o dígito verificador da chave (módulo 11) sobre os 43
// primeiros dígitos. Os pesos ciclam de 2 a 9 aplicados da direita para a
// esquerda; resto < 2 resulta em dígito 0, senão 11 − resto.
func CalcularDV(base43 string) (byte, error) {
	if len(base43) != LenChave-1 {
		return 0, fmt.Errorf("nfce: base da chave deve ter 43 dígitos, recebidos %d", len(base43))
	}
	peso := 2
	soma := 0
	for i := len(base43) - 1; i >= 0; i-- {
		d := base43[i]
		if d < '0' || d > '9' {
			return 0, fmt.Errorf("nfce: chave contém caractere não numérico %q", d)
		}
		soma += int(d-'0') * peso
		peso++
		if peso > 9 {
			peso = 2
		}
	}
	resto := soma % 11
	if resto < 2 {
		return '0', nil
	}
	return byte('0' + (11 - resto)), nil
}

// ValidarChave verifica comprimento, conteúdo numérico e dígito verificador.
// Recalcular o DV a partir dos 43 primeiros dígitos deve reproduzir o 44.º.
func ValidarChave(chave string) error {
	if len(chave) != LenChave {
		return fmt.Errorf("nfce: chave de acesso deve ter %d dígitos, recebidos %d", LenChave, len(chave))
	}
	dv, err := CalcularDV(chave[:LenChave-1])
	if err != nil {
		return err
	}
	if chave[LenChave-1] < '0' || chave[LenChave-1] > '9' {
		return fmt.Errorf("nfce: dígito verificador não numérico %q", chave[LenChave-1])
	}
	if chave[LenChave-1] != dv {
		return fmt.Errorf("nfce: dígito verificador inválido: esperado %c, recebido %c", dv, chave[LenChave-1])
	}
	return nil
}

// GerarCNF gera o código numérico aleatório de 8 dígitos (cNF). O valor não é
// persistido: a unicidade da chave continua ancorada em série + número.
func GerarCNF() string {
	n, err := rand.Int(rand.Reader, big.NewInt(100_000_000))
	if err != nil {
		// rand.Reader não falha em plataformas suportadas; fallback constante
		// apenas para não propagar erro num caminho que o layout trata como infalível.
		return "00000001"
	}
	return fmt.Sprintf("%08d", n.Int64())
}

// SomenteDigitos remove tudo que não for dígito 0-9 (CNPJ/CPF com pontuação).
func SomenteDigitos(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func campoNumerico(nome, valor string, tam int) (string, error) {
	if valor == "" {
		return "", fmt.Errorf("nfce: campo %s é obrigatório na chave de acesso", nome)
	}
	if len(valor) > tam {
		return "", fmt.Errorf("nfce: campo %s excede %d dígitos: %q", nome, tam, valor)
	}
	for i := 0; i < len(valor); i++ {
		if valor[i] < '0' || valor[i] > '9' {
			return "", fmt.Errorf("nfce: campo %s contém caractere não numérico: %q", nome, valor)
		}
	}
	return strings.Repeat("0", tam-len(valor)) + valor, nil
}
