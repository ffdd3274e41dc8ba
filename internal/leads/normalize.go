// Package leads turns spreadsheet rows into contact records and keeps the
// mirror board and the spreadsheet stop flag consistent with them.
package leads

import (
	"strconv"
	"strings"

	"leadboard/pkg/models"
)

// SyntheticKeyPrefix marks identity keys derived from the row position because
// the phone cell was empty. Such keys never match across stores.
const SyntheticKeyPrefix = "lead_"

// headerFields maps a trimmed, lower-cased spreadsheet header to a contact field.
var headerFields = map[string]string{
	"data":                     "data",
	"nome":                     "nome",
	"telefone":                 "numero",
	"stop":                     "stop",
	"contrato fechado":         "contratoFechado",
	"município":                "cidade",
	"serviço / produto":        "objetivo",
	"historico":                "historico",
	"pasta":                    "pasta",
	"dia do agendamento":       "diaDoAgendamento",
	"idade":                    "idade",
	"relatório de atendimento": "relatorioDeAtendimento",
	"id openai":                "idOpenai",
	"horário":                  "horario",
	"mensagem atual":           "mensagemAtual",
	"aguardando envio":         "aguardandoEnvio",
	"resposta ia":              "respostaIa",
	"runid":                    "runId",
	"status":                   "status",
	"lembrete":                 "lembrete",
	"agendamento enviado":      "agendamentoEnviado",
	"imagem do perfil":         "imagemDoPerfil",
	"resumo da conversa":       "resumo",
	"histórico completo":       "historicoCompleto",
	"file id openai":           "fileIdOpenai",
	"possui arquivo":           "possuiArquivo",
	"cpf":                      "cpf",
	"endereço":                 "endereco",
	"cep":                      "cep",
	"estado":                   "estado",
	"profissão":                "profissao",
	"data de nascimento":       "nascimento",
	"contrato gerado":          "contratoGerado",
	"estado civil":             "estadoCivil",
	"bairro":                   "bairro",
}

// HeaderKey canonicalizes a header label for dictionary and column lookups.
func HeaderKey(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// DigitsOnly strips every non-digit character.
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsSynthetic reports whether key was derived from a row position.
func IsSynthetic(key string) bool {
	return strings.HasPrefix(key, SyntheticKeyPrefix)
}

// Normalize maps one data row to a contact. rowIndex is the zero-based index
// of the row below the header. It returns nil when the row has neither a
// name nor a phone number.
func Normalize(header, row []string, rowIndex int) *models.Contact {
	c := &models.Contact{RowNumber: rowIndex + 2}

	for i, label := range header {
		field, ok := headerFields[HeaderKey(label)]
		if !ok {
			continue
		}
		var cell string
		if i < len(row) {
			cell = strings.TrimSpace(row[i])
		}
		c.Set(field, cell)
	}

	c.Phone = DigitsOnly(c.Phone)
	if c.Name == "" && c.Phone == "" {
		return nil
	}

	if c.Phone != "" {
		c.ID = c.Phone
	} else {
		c.ID = SyntheticKeyPrefix + strconv.Itoa(c.RowNumber)
		c.LowConfidence = true
	}
	return c
}

// NormalizeRows treats the first row as the header and normalizes the rest,
// dropping rejected rows. Spreadsheet order is preserved.
func NormalizeRows(values [][]string) []models.Contact {
	if len(values) < 2 {
		return nil
	}
	header := values[0]
	contacts := make([]models.Contact, 0, len(values)-1)
	for i, row := range values[1:] {
		if c := Normalize(header, row, i); c != nil {
			contacts = append(contacts, *c)
		}
	}
	return contacts
}
