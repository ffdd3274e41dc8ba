package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Contact represents a lead as mirrored from the spreadsheet.
// The JSON names match the documents the board UI already reads.
type Contact struct {
	ID            string   `json:"id"` // digits-only phone, or lead_<row> when the phone is missing
	Name          string   `json:"nome"`
	Phone         string   `json:"numero"`
	Stop          StopFlag `json:"stop"`
	RowNumber     int      `json:"rowNumber,omitempty"`
	LowConfidence bool     `json:"lowConfidence,omitempty"`

	Date              string `json:"data,omitempty"`
	ContractClosed    string `json:"contratoFechado,omitempty"`
	City              string `json:"cidade,omitempty"`
	Objective         string `json:"objetivo,omitempty"`
	History           string `json:"historico,omitempty"`
	Folder            string `json:"pasta,omitempty"`
	AppointmentDay    string `json:"diaDoAgendamento,omitempty"`
	Age               string `json:"idade,omitempty"`
	ServiceReport     string `json:"relatorioDeAtendimento,omitempty"`
	OpenAIID          string `json:"idOpenai,omitempty"`
	AppointmentTime   string `json:"horario,omitempty"`
	CurrentMessage    string `json:"mensagemAtual,omitempty"`
	AwaitingSend      string `json:"aguardandoEnvio,omitempty"`
	AIResponse        string `json:"respostaIa,omitempty"`
	RunID             string `json:"runId,omitempty"`
	Status            string `json:"status,omitempty"`
	Reminder          string `json:"lembrete,omitempty"`
	AppointmentSent   string `json:"agendamentoEnviado,omitempty"`
	ProfilePicture    string `json:"imagemDoPerfil,omitempty"`
	Summary           string `json:"resumo,omitempty"`
	FullHistory       string `json:"historicoCompleto,omitempty"`
	OpenAIFileID      string `json:"fileIdOpenai,omitempty"`
	HasFile           string `json:"possuiArquivo,omitempty"`
	CPF               string `json:"cpf,omitempty"`
	Address           string `json:"endereco,omitempty"`
	ZipCode           string `json:"cep,omitempty"`
	State             string `json:"estado,omitempty"`
	Profession        string `json:"profissao,omitempty"`
	BirthDate         string `json:"nascimento,omitempty"`
	ContractGenerated string `json:"contratoGerado,omitempty"`
	MaritalStatus     string `json:"estadoCivil,omitempty"`
	Neighborhood      string `json:"bairro,omitempty"`

	UpdatedAt *time.Time `json:"ultimaAtualizacao,omitempty"`
	SyncedAt  *time.Time `json:"sincronizadoEm,omitempty"`

	// Extra keeps fields the board UI wrote that are not part of the record,
	// so a rewrite of the document does not drop them.
	Extra map[string]json.RawMessage `json:"-"`
}

type contactFields Contact

// UnmarshalJSON accepts any JSON object. Numbers and booleans stored in text
// fields are kept as their literal text; values that fit no field go to Extra.
func (c *Contact) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*c = Contact{}
	for key, raw := range fields {
		if c.decodeField(key, raw) {
			continue
		}
		if c.Extra == nil {
			c.Extra = make(map[string]json.RawMessage)
		}
		c.Extra[key] = raw
	}
	return nil
}

func (c Contact) MarshalJSON() ([]byte, error) {
	body, err := json.Marshal(contactFields(c))
	if err != nil || len(c.Extra) == 0 {
		return body, err
	}
	return withExtra(body, c.Extra)
}

func (c *Contact) decodeField(key string, raw json.RawMessage) bool {
	switch key {
	case "id":
		s, ok := looseString(raw)
		c.ID = s
		return ok
	case "stop":
		var f StopFlag
		if err := f.UnmarshalJSON(raw); err != nil {
			return false
		}
		c.Stop = f
		return true
	case "rowNumber":
		if err := json.Unmarshal(raw, &c.RowNumber); err == nil {
			return true
		}
		s, ok := looseString(raw)
		if !ok {
			return false
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return false
		}
		c.RowNumber = n
		return true
	case "lowConfidence":
		return json.Unmarshal(raw, &c.LowConfidence) == nil
	case "ultimaAtualizacao":
		c.UpdatedAt = looseTime(raw)
		return c.UpdatedAt != nil || isNull(raw)
	case "sincronizadoEm":
		c.SyncedAt = looseTime(raw)
		return c.SyncedAt != nil || isNull(raw)
	}
	p := c.stringField(key)
	if p == nil {
		return false
	}
	s, ok := looseString(raw)
	if !ok {
		return false
	}
	*p = s
	return true
}

// Set assigns a canonical field by its JSON name. It reports false for
// names that do not belong to the contact record.
func (c *Contact) Set(field, value string) bool {
	if field == "stop" {
		c.Stop = ParseStopFlag(value)
		return true
	}
	p := c.stringField(field)
	if p == nil {
		return false
	}
	*p = value
	return true
}

// Get returns the value of a canonical string field.
func (c *Contact) Get(field string) string {
	if field == "stop" {
		return c.Stop.SheetValue()
	}
	if p := c.stringField(field); p != nil {
		return *p
	}
	return ""
}

func (c *Contact) stringField(field string) *string {
	switch field {
	case "nome":
		return &c.Name
	case "numero":
		return &c.Phone
	case "data":
		return &c.Date
	case "contratoFechado":
		return &c.ContractClosed
	case "cidade":
		return &c.City
	case "objetivo":
		return &c.Objective
	case "historico":
		return &c.History
	case "pasta":
		return &c.Folder
	case "diaDoAgendamento":
		return &c.AppointmentDay
	case "idade":
		return &c.Age
	case "relatorioDeAtendimento":
		return &c.ServiceReport
	case "idOpenai":
		return &c.OpenAIID
	case "horario":
		return &c.AppointmentTime
	case "mensagemAtual":
		return &c.CurrentMessage
	case "aguardandoEnvio":
		return &c.AwaitingSend
	case "respostaIa":
		return &c.AIResponse
	case "runId":
		return &c.RunID
	case "status":
		return &c.Status
	case "lembrete":
		return &c.Reminder
	case "agendamentoEnviado":
		return &c.AppointmentSent
	case "imagemDoPerfil":
		return &c.ProfilePicture
	case "resumo":
		return &c.Summary
	case "historicoCompleto":
		return &c.FullHistory
	case "fileIdOpenai":
		return &c.OpenAIFileID
	case "possuiArquivo":
		return &c.HasFile
	case "cpf":
		return &c.CPF
	case "endereco":
		return &c.Address
	case "cep":
		return &c.ZipCode
	case "estado":
		return &c.State
	case "profissao":
		return &c.Profession
	case "nascimento":
		return &c.BirthDate
	case "contratoGerado":
		return &c.ContractGenerated
	case "estadoCivil":
		return &c.MaritalStatus
	case "bairro":
		return &c.Neighborhood
	}
	return nil
}

func looseTime(raw json.RawMessage) *time.Time {
	if isNull(raw) {
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil
	}
	return &t
}

// StopFlag is the do-not-contact marker. The spreadsheet stores it as "SIM"
// or an empty cell; older board documents carry the same strings, so both
// booleans and strings are accepted when decoding.
type StopFlag bool

const StopSheetValue = "SIM"

// ParseStopFlag interprets a spreadsheet cell.
func ParseStopFlag(cell string) StopFlag {
	return StopFlag(strings.EqualFold(strings.TrimSpace(cell), StopSheetValue))
}

// SheetValue renders the flag the way it is written to the spreadsheet.
func (f StopFlag) SheetValue() string {
	if f {
		return StopSheetValue
	}
	return ""
}

func (f *StopFlag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = false
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = ParseStopFlag(s)
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err != nil {
		return err
	}
	*f = StopFlag(b)
	return nil
}
