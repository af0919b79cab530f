// Package storage defines the persisted entities and the backend-agnostic
// Repository interface. Concrete backends (sqlite, postgres) live in
// subpackages and register themselves with the factory in repository.go.
//
// Extracted record lists and chart series/options persist as embedded JSON
// blobs rather than normalized columns; readers must treat those blobs as
// schema-on-read.
package storage

import (
	"errors"
	"time"

	"painel/internal/tabular"
)

// ErrNotFound indicates the requested entity does not exist for the
// requesting owner. Entities owned by other users are indistinguishable
// from missing ones.
var ErrNotFound = errors.New("registro nao encontrado")

// ErrDuplicateName indicates a per-owner workflow name collision.
var ErrDuplicateName = errors.New("ja existe um workflow com este nome")

// Workflow types.
const (
	TipoBalancete = "balancete"
	TipoAnaliseJP = "analise_jp"
)

// ValidTipo reports whether t is a known workflow type.
func ValidTipo(t string) bool {
	return t == TipoBalancete || t == TipoAnaliseJP
}

// Workflow is a named, owner-scoped analysis container.
//
// Nome is unique per owner, not globally. Tipo is immutable in spirit; the
// update API permits changing it but nothing migrates existing uploads or
// charts to the new type's semantics.
type Workflow struct {
	ID          int64     `json:"id"`
	Nome        string    `json:"nome"`
	Descricao   string    `json:"descricao"`
	Tipo        string    `json:"tipo"`
	UsuarioID   int64     `json:"usuario_id"`
	DataCriacao time.Time `json:"data_criacao"`
}

// Upload is one ingested spreadsheet plus its extracted records.
//
// Dados is append-only: LinhasOcultas indices reference positions in the
// original record list and are bounds-checked against its length, never
// against the filtered view. Categoria is empty for balancete uploads.
type Upload struct {
	ID             int64             `json:"id"`
	WorkflowID     int64             `json:"workflow_id"`
	Categoria      string            `json:"categoria"`
	NomeArquivo    string            `json:"nome_arquivo"`
	CaminhoArquivo string            `json:"caminho_arquivo"`
	Dados          tabular.RecordSet `json:"dados_extraidos,omitempty"`
	LinhasOcultas  []int             `json:"linhas_ocultas"`
	CreatedAt      time.Time         `json:"created_at"`
}

// ChartSeries is one value series of a chart definition.
type ChartSeries struct {
	ValueKey string `json:"value_key"`
	Label    string `json:"label"`
	Color    string `json:"color,omitempty"`
}

// Chart is a saved visualization spec bound to one workflow and one dataset
// source. SourceType discriminates the two workflow flavors; both share this
// single shape instead of parallel per-type tables.
type Chart struct {
	ID         int64          `json:"id"`
	WorkflowID int64          `json:"workflow_id"`
	Nome       string         `json:"nome"`
	ChartType  string         `json:"chart_type"`
	SourceType string         `json:"source_type"`
	SourceID   string         `json:"source_id"`
	LabelKey   string         `json:"label_key"`
	Series     []ChartSeries  `json:"series"`
	Options    map[string]any `json:"options"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
