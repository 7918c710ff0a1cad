package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims inclui os claims padrão JWT mais os campos próprios do PDV.
// TerminalID identifica o caixa; Perfil permite decisões de autorização sem
// consultar armazenamento.
type Claims struct {
	jwt.RegisteredClaims
	OperadorID string `json:"operador_id"`
	TerminalID string `json:"terminal_id"`
	Perfil     string `json:"perfil"` // "gerente" | "operador"
}

// Generate gera um token JWT assinado incluindo operadorID, terminalID e perfil.
func Generate(secret, operadorID, terminalID, perfil, issuer string, expMinutes int) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("jwt: secret vazio")
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   operadorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(expMinutes) * time.Minute)),
		},
		OperadorID: operadorID,
		TerminalID: terminalID,
		Perfil:     perfil,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Parse valida o token e devolve operadorID, terminalID e perfil.
// Retorna erro se o token for inválido, expirado ou com assinatura incorreta.
func Parse(secret, tokenString string) (operadorID, terminalID, perfil string, err error) {
	if secret == "" {
		return "", "", "", fmt.Errorf("jwt: secret vazio")
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("método de assinatura inesperado: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", "", "", err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", "", "", fmt.Errorf("claims inválidos")
	}
	return claims.OperadorID, claims.TerminalID, claims.Perfil, nil
}
