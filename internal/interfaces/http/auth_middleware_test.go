package http_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apphttp "github.com/pdvlabs/fiscal-api/internal/interfaces/http"
	pkgjwt "github.com/pdvlabs/fiscal-api/pkg/jwt"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de teste
// ──────────────────────────────────────────────────────────────────────────────

const (
	testJWTSecret  = "test-secret-key-for-unit-tests"
	testOperadorID = "00000000-0000-0000-0000-000000000001"
	testTerminalID = "caixa-01"
	testIssuer     = "pdv-fiscal-test"
	testExpMin     = 60
)

// buildTestApp constrói uma aplicação Fiber mínima com:
//   - AuthMiddleware para parsear o JWT e carregar os locals
//   - RequirePerfil para autorizar o acesso
//   - Um handler dummy que devolve 200 se passar pelos middlewares
func buildTestApp(perfisPermitidos ...string) *fiber.App {
	app := fiber.New(fiber.Config{
		// Silenciar erros internos nos testes
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})
	// Rota protegida: JWT + perfil
	app.Get("/protected",
		apphttp.AuthMiddleware(testJWTSecret),
		apphttp.RequirePerfil(perfisPermitidos...),
		func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusOK).JSON(fiber.Map{
				"ok":     true,
				"perfil": apphttp.GetPerfil(c),
			})
		},
	)
	return app
}

// tokenParaPerfil gera um JWT com o perfil indicado.
func tokenParaPerfil(t *testing.T, perfil string) string {
	t.Helper()
	tok, err := pkgjwt.Generate(testJWTSecret, testOperadorID, testTerminalID, perfil, testIssuer, testExpMin)
	require.NoError(t, err, "deve gerar um token JWT válido")
	return "Bearer " + tok
}

// doRequest dispara uma requisição GET /protected e devolve a resposta.
func doRequest(t *testing.T, app *fiber.App, authHeader string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests RequirePerfil
// ──────────────────────────────────────────────────────────────────────────────

// Caso 1: o operador tem o perfil exigido → deve passar (HTTP 200).
func TestRequirePerfil_GerenteAcessaRotaGerente(t *testing.T) {
	app := buildTestApp("gerente")
	resp := doRequest(t, app, tokenParaPerfil(t, "gerente"))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode,
		"gerente deve acessar rota restrita a gerente")

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["ok"], "a resposta deve incluir ok:true")
	assert.Equal(t, "gerente", body["perfil"], "o perfil deve ser gerente")
}

// Caso 1b: o operador tem um dos perfis permitidos (multi-perfil) → HTTP 200.
func TestRequirePerfil_OperadorAcessaRotaGerenteOuOperador(t *testing.T) {
	app := buildTestApp("gerente", "operador")
	resp := doRequest(t, app, tokenParaPerfil(t, "operador"))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode,
		"operador deve acessar rota que permite gerente ou operador")
}

// Caso 2: o operador tem um perfil diferente do exigido → HTTP 403 Forbidden.
func TestRequirePerfil_OperadorBloqueadoEmRotaGerente(t *testing.T) {
	app := buildTestApp("gerente")
	resp := doRequest(t, app, tokenParaPerfil(t, "operador"))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode,
		"operador não deve acessar rota restrita a gerente")

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "FORBIDDEN",
		"a resposta de erro deve incluir o código FORBIDDEN")
}

// Caso 3: token sem claim de perfil (emulado com perfil vazio) → HTTP 401.
func TestRequirePerfil_TokenSemPerfil_Retorna401(t *testing.T) {
	app := buildTestApp("gerente")
	tok, err := pkgjwt.Generate(testJWTSecret, testOperadorID, testTerminalID, "", testIssuer, testExpMin)
	require.NoError(t, err)

	resp := doRequest(t, app, "Bearer "+tok)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode,
		"token sem perfil deve retornar 401")

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "MISSING_PERFIL",
		"a resposta deve indicar o código MISSING_PERFIL")
}

// Caso 4: sem header Authorization → HTTP 401 MISSING_TOKEN.
func TestRequirePerfil_SemAuthHeader_Retorna401(t *testing.T) {
	app := buildTestApp("gerente")
	resp := doRequest(t, app, "") // sem header
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// Caso 5: token inválido / malformado → HTTP 401 INVALID_TOKEN.
func TestRequirePerfil_TokenInvalido_Retorna401(t *testing.T) {
	app := buildTestApp("gerente")
	resp := doRequest(t, app, "Bearer token.invalido.aqui")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests AuthMiddleware — extração dos claims do token
// ──────────────────────────────────────────────────────────────────────────────

func TestAuthMiddleware_ExtraiClaims(t *testing.T) {
	app := fiber.New()
	app.Get("/me", apphttp.AuthMiddleware(testJWTSecret), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"operador_id": apphttp.GetOperadorID(c),
			"terminal_id": apphttp.GetTerminalID(c),
			"perfil":      apphttp.GetPerfil(c),
		})
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", tokenParaPerfil(t, "gerente"))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, testOperadorID, body["operador_id"])
	assert.Equal(t, testTerminalID, body["terminal_id"])
	assert.Equal(t, "gerente", body["perfil"])
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests JWT pkg — integridade do generate/parse com perfil
// ──────────────────────────────────────────────────────────────────────────────

func TestJWT_GenerateAndParse_ComPerfil(t *testing.T) {
	tok, err := pkgjwt.Generate(testJWTSecret, testOperadorID, testTerminalID, "operador", testIssuer, testExpMin)
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	operadorID, terminalID, perfil, err := pkgjwt.Parse(testJWTSecret, tok)
	require.NoError(t, err)

	assert.Equal(t, testOperadorID, operadorID)
	assert.Equal(t, testTerminalID, terminalID)
	assert.Equal(t, "operador", perfil)
}

func TestJWT_TokenExpirado_RetornaErro(t *testing.T) {
	// Token com expiração -1 minuto (já expirado)
	tok, err := pkgjwt.Generate(testJWTSecret, testOperadorID, testTerminalID, "gerente", testIssuer, -1)
	require.NoError(t, err)

	_, _, _, err = pkgjwt.Parse(testJWTSecret, tok)
	assert.Error(t, err, "token expirado deve retornar erro")
}

func TestJWT_SecretIncorreto_RetornaErro(t *testing.T) {
	tok, err := pkgjwt.Generate(testJWTSecret, testOperadorID, testTerminalID, "gerente", testIssuer, testExpMin)
	require.NoError(t, err)

	_, _, _, err = pkgjwt.Parse("outro-secret-completamente-diferente", tok)
	assert.Error(t, err, "secret incorreto deve invalidar o token")
}
