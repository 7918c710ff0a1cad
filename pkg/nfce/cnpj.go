package nfce

import "fmt"

// Pesos para os dois dígitos verificadores do CNPJ (módulo 11 da Receita Federal).
var (
	cnpjPesos1 = [12]int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjPesos2 = [13]int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// ValidarCNPJ valida os dois dígitos verificadores do CNPJ. Aceita o número
// com ou sem pontuação ("12.345.678/0001-95" ou "12345678000195").
func ValidarCNPJ(cnpj string) error {
	digitos := SomenteDigitos(cnpj)
	if len(digitos) != 14 {
		return fmt.Errorf("nfce: CNPJ deve ter 14 dígitos, recebidos %d", len(digitos))
	}
	todosIguais := true
	for i := 1; i < len(digitos); i++ {
		if digitos[i] != digitos[0] {
			todosIguais = false
			break
		}
	}
	if todosIguais {
		return fmt.Errorf("nfce: CNPJ com todos os dígitos iguais é inválido")
	}
	d1 := cnpjDV(digitos[:12], cnpjPesos1[:])
	if digitos[12] != d1 {
		return fmt.Errorf("nfce: primeiro dígito verificador do CNPJ inválido: esperado %c, recebido %c", d1, digitos[12])
	}
	d2 := cnpjDV(digitos[:13], cnpjPesos2[:])
	if digitos[13] != d2 {
		return fmt.Errorf("nfce: segundo dígito verificador do CNPJ inválido: esperado %c, recebido %c", d2, digitos[13])
	}
	return nil
}

func cnpjDV(base string, pesos []int) byte {
	var soma int
	for i := 0; i < len(base); i++ {
		soma += int(base[i]-'0') * pesos[i]
	}
	resto := soma % 11
	if resto < 2 {
		return '0'
	}
	return byte('0' + (11 - resto))
}
