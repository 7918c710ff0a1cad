package nfce_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdvlabs/fiscal-api/pkg/nfce"
)

// ──────────────────────────────────────────────────────────────────────────────
// Vetor de referência calculado manualmente (módulo 11, pesos 2..9 da direita
// para a esquerda):
//
//	base43 = "43" + "2508" + "12345678000195" + "65" + "001" + "000000123" + "1" + "12345678"
//	DV esperado = 3
//
// Se alguém alterar a ordem dos campos, os pesos ou a regra do resto, este
// teste falha imediatamente.
// ──────────────────────────────────────────────────────────────────────────────

const (
	testBase43       = "4325081234567800019565001000000123112345678"
	testChaveEsperada = "43250812345678000195650010000001231123456783"
)

func TestCalcularDV_VetorConhecido(t *testing.T) {
	dv, err := nfce.CalcularDV(testBase43)
	require.NoError(t, err)
	assert.Equal(t, byte('3'), dv, "DV deve reproduzir o vetor de referência")
}

func TestCalcularDV_RestoMenorQueDois(t *testing.T) {
	// Base cuja soma ponderada deixa resto 1 no módulo 11 → DV 0 pela regra.
	base := "3526011234567800019565001000001042900000000"
	dv, err := nfce.CalcularDV(base)
	require.NoError(t, err)
	assert.Equal(t, byte('0'), dv)
}

func TestMontarChave_ComposicaoCompleta(t *testing.T) {
	chave, err := nfce.MontarChave(nfce.CamposChave{
		CUF:    "43",
		AAMM:   "2508",
		CNPJ:   "12.345.678/0001-95", // pontuação deve ser removida
		Modelo: "65",
		Serie:  "1",
		Numero: 123,
		TpEmis: "1",
		CNF:    "12345678",
	})
	require.NoError(t, err)
	assert.Equal(t, testChaveEsperada, chave)
	assert.Len(t, chave, nfce.LenChave)
}

func TestMontarChave_PaddingDeSerieENumero(t *testing.T) {
	chave, err := nfce.MontarChave(nfce.CamposChave{
		CUF: "35", AAMM: "2601", CNPJ: "12345678000195",
		Modelo: "65", Serie: "1", Numero: 1042, TpEmis: "9", CNF: "87654321",
	})
	require.NoError(t, err)
	assert.Equal(t, "001", chave[22:25], "série deve ser preenchida com zeros à esquerda")
	assert.Equal(t, "000001042", chave[25:34], "nNF deve ser preenchido com zeros à esquerda")
	assert.NoError(t, nfce.ValidarChave(chave))
}

// TestValidarChave_RecalculoDV é a propriedade central do motor: recalcular o
// DV a partir dos 43 primeiros dígitos reproduz o 44.º para qualquer chave gerada.
func TestValidarChave_RecalculoDV(t *testing.T) {
	for numero := int64(1); numero <= 50; numero++ {
		chave, err := nfce.MontarChave(nfce.CamposChave{
			CUF: "43", AAMM: "2508", CNPJ: "12345678000195",
			Modelo: "65", Serie: "1", Numero: numero, TpEmis: "1", CNF: nfce.GerarCNF(),
		})
		require.NoError(t, err)
		assert.NoError(t, nfce.ValidarChave(chave), "chave nNF=%d deve validar o DV", numero)
	}
}

func TestValidarChave_DVAdulterado(t *testing.T) {
	adulterada := testChaveEsperada[:43] + "7"
	assert.Error(t, nfce.ValidarChave(adulterada), "DV incorreto deve ser rejeitado")
}

func TestValidarChave_ComprimentoInvalido(t *testing.T) {
	assert.Error(t, nfce.ValidarChave("123"))
	assert.Error(t, nfce.ValidarChave(""))
}

func TestMontarChave_Erros(t *testing.T) {
	base := nfce.CamposChave{
		CUF: "43", AAMM: "2508", CNPJ: "12345678000195",
		Modelo: "65", Serie: "1", Numero: 1, TpEmis: "1", CNF: "12345678",
	}

	semCUF := base
	semCUF.CUF = ""
	_, err := nfce.MontarChave(semCUF)
	assert.Error(t, err, "cUF vazio deve falhar")

	numeroGrande := base
	numeroGrande.Numero = 1_000_000_000
	_, err = nfce.MontarChave(numeroGrande)
	assert.Error(t, err, "nNF acima de 9 dígitos deve falhar")

	cnfCurto := base
	cnfCurto.CNF = "12AB5678"
	_, err = nfce.MontarChave(cnfCurto)
	assert.Error(t, err, "cNF não numérico deve falhar")
}

func TestGerarCNF_OitoDigitos(t *testing.T) {
	for i := 0; i < 20; i++ {
		cnf := nfce.GerarCNF()
		require.Len(t, cnf, 8)
		for j := 0; j < len(cnf); j++ {
			assert.True(t, cnf[j] >= '0' && cnf[j] <= '9')
		}
	}
}
