package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/pdvlabs/fiscal-api/internal/application/dto"
	"github.com/pdvlabs/fiscal-api/pkg/jwt"
)

// Chaves de Locals preenchidas pelo middleware de autenticação.
const (
	LocalOperadorID = "operador_id"
	LocalTerminalID = "terminal_id"
	LocalPerfil     = "perfil"
)

// AuthMiddleware valida o Bearer Token JWT e carrega operador, terminal e
// perfil em c.Locals.
func AuthMiddleware(jwtSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "header Authorization obrigatório"})
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "formato: Bearer <token>"})
		}
		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "token vazio"})
		}
		operadorID, terminalID, perfil, err := jwt.Parse(jwtSecret, tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "token inválido ou expirado"})
		}
		c.Locals(LocalOperadorID, operadorID)
		c.Locals(LocalTerminalID, terminalID)
		c.Locals(LocalPerfil, perfil)
		return c.Next()
	}
}

// RequirePerfil autoriza apenas os perfis informados (depois do AuthMiddleware).
func RequirePerfil(perfis ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		perfil := GetPerfil(c)
		if perfil == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_PERFIL", Message: "token sem perfil"})
		}
		for _, p := range perfis {
			if p == perfil {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "perfil sem acesso a esta operação"})
	}
}

// GetOperadorID devolve o operador autenticado (depois do middleware).
func GetOperadorID(c *fiber.Ctx) string {
	s, _ := c.Locals(LocalOperadorID).(string)
	return s
}

// GetTerminalID devolve o terminal autenticado.
func GetTerminalID(c *fiber.Ctx) string {
	s, _ := c.Locals(LocalTerminalID).(string)
	return s
}

// GetPerfil devolve o perfil do operador.
func GetPerfil(c *fiber.Ctx) string {
	s, _ := c.Locals(LocalPerfil).(string)
	return s
}
