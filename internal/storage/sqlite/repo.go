// Package sqlite implements storage.Repository over modernc.org/sqlite.
//
// Key design points vs the Postgres backend:
//   - SQLite has no native timestamp type; timestamps are stored as
//     RFC3339Nano TEXT for reliable round-trip behavior and easy debugging.
//   - JSON blobs (records, hidden rows, chart series/options) are TEXT.
//   - "INSERT OR IGNORE"/UNIQUE constraints replace ON CONFLICT clauses.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"painel/internal/storage"
	"painel/internal/tabular"
)

func init() {
	storage.Register("sqlite", New)
}

// Repo implements storage.Repository for SQLite.
type Repo struct {
	db *sql.DB
}

// New opens the SQLite database at cfg.DSN (":memory:" works for tests).
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

var schema = []string{
	`CREATE TABLE IF NOT EXISTS workflows (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  nome TEXT NOT NULL,
  descricao TEXT NOT NULL DEFAULT '',
  tipo TEXT NOT NULL,
  usuario_id INTEGER NOT NULL,
  data_criacao TEXT NOT NULL,
  UNIQUE (nome, usuario_id)
);`,
	`CREATE TABLE IF NOT EXISTS analise_uploads (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  workflow_id INTEGER NOT NULL REFERENCES workflows(id),
  categoria TEXT NOT NULL DEFAULT '',
  nome_arquivo TEXT NOT NULL,
  caminho_arquivo TEXT NOT NULL,
  dados_extraidos TEXT NOT NULL,
  linhas_ocultas TEXT NOT NULL DEFAULT '[]',
  created_at TEXT NOT NULL
);`,
	`CREATE INDEX IF NOT EXISTS idx_analise_uploads_workflow_categoria
  ON analise_uploads (workflow_id, categoria);`,
	`CREATE TABLE IF NOT EXISTS charts (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  workflow_id INTEGER NOT NULL REFERENCES workflows(id),
  nome TEXT NOT NULL,
  chart_type TEXT NOT NULL,
  source_type TEXT NOT NULL,
  source_id TEXT NOT NULL DEFAULT '',
  label_key TEXT NOT NULL,
  series TEXT NOT NULL,
  options TEXT NOT NULL DEFAULT '{}',
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);`,
	`CREATE TABLE IF NOT EXISTS user_themes (
  user_id INTEGER PRIMARY KEY,
  theme TEXT NOT NULL
);`,
}

// EnsureSchema creates tables idempotently, mirroring startup behavior of
// the other backends.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// ---- workflows ----

func (r *Repo) CreateWorkflow(ctx context.Context, w *storage.Workflow) error {
	if w.DataCriacao.IsZero() {
		w.DataCriacao = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO workflows (nome, descricao, tipo, usuario_id, data_criacao) VALUES (?, ?, ?, ?, ?)`,
		w.Nome, w.Descricao, w.Tipo, w.UsuarioID, formatTime(w.DataCriacao),
	)
	if err != nil {
		return mapUniqueErr(err)
	}
	w.ID, err = res.LastInsertId()
	return err
}

func (r *Repo) ListWorkflows(ctx context.Context, ownerID int64) ([]storage.Workflow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, nome, descricao, tipo, usuario_id, data_criacao
		 FROM workflows WHERE usuario_id = ? ORDER BY data_criacao DESC, id DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.Workflow
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *Repo) GetWorkflow(ctx context.Context, ownerID, id int64) (storage.Workflow, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, nome, descricao, tipo, usuario_id, data_criacao
		 FROM workflows WHERE id = ? AND usuario_id = ?`, id, ownerID)
	return scanWorkflow(row)
}

func (r *Repo) GetWorkflowByName(ctx context.Context, ownerID int64, nome string) (storage.Workflow, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, nome, descricao, tipo, usuario_id, data_criacao
		 FROM workflows WHERE nome = ? AND usuario_id = ?`, nome, ownerID)
	return scanWorkflow(row)
}

func (r *Repo) UpdateWorkflow(ctx context.Context, w storage.Workflow) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE workflows SET nome = ?, descricao = ?, tipo = ? WHERE id = ? AND usuario_id = ?`,
		w.Nome, w.Descricao, w.Tipo, w.ID, w.UsuarioID,
	)
	if err != nil {
		return mapUniqueErr(err)
	}
	return requireAffected(res)
}

func (r *Repo) DeleteWorkflow(ctx context.Context, ownerID, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM workflows WHERE id = ? AND usuario_id = ?`, id, ownerID)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM analise_uploads WHERE workflow_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM charts WHERE workflow_id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// ---- uploads ----

func (r *Repo) CreateUpload(ctx context.Context, u *storage.Upload) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	dados, err := json.Marshal(u.Dados)
	if err != nil {
		return fmt.Errorf("serializar registros: %w", err)
	}
	ocultas, err := json.Marshal(emptyIfNil(u.LinhasOcultas))
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO analise_uploads (workflow_id, categoria, nome_arquivo, caminho_arquivo, dados_extraidos, linhas_ocultas, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.WorkflowID, u.Categoria, u.NomeArquivo, u.CaminhoArquivo, string(dados), string(ocultas), formatTime(u.CreatedAt),
	)
	if err != nil {
		return err
	}
	u.ID, err = res.LastInsertId()
	return err
}

const uploadCols = `id, workflow_id, categoria, nome_arquivo, caminho_arquivo, linhas_ocultas, created_at`

func (r *Repo) ListUploads(ctx context.Context, workflowID int64, categoria string) ([]storage.Upload, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+uploadCols+` FROM analise_uploads
		 WHERE workflow_id = ? AND categoria = ?
		 ORDER BY created_at DESC, id DESC`, workflowID, categoria)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUploads(rows)
}

func (r *Repo) ListUploadsByWorkflow(ctx context.Context, workflowID int64) ([]storage.Upload, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+uploadCols+` FROM analise_uploads
		 WHERE workflow_id = ? ORDER BY created_at DESC, id DESC`, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUploads(rows)
}

func (r *Repo) GetUpload(ctx context.Context, workflowID int64, categoria string, id int64) (storage.Upload, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+uploadCols+`, dados_extraidos FROM analise_uploads
		 WHERE id = ? AND workflow_id = ? AND categoria = ?`, id, workflowID, categoria)
	return scanUploadWithData(row)
}

func (r *Repo) LatestUpload(ctx context.Context, workflowID int64, categoria string) (storage.Upload, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+uploadCols+`, dados_extraidos FROM analise_uploads
		 WHERE workflow_id = ? AND categoria = ?
		 ORDER BY created_at DESC, id DESC LIMIT 1`, workflowID, categoria)
	return scanUploadWithData(row)
}

func (r *Repo) UpdateHiddenRows(ctx context.Context, uploadID int64, indices []int) error {
	b, err := json.Marshal(emptyIfNil(indices))
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE analise_uploads SET linhas_ocultas = ? WHERE id = ?`, string(b), uploadID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *Repo) DeleteUpload(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM analise_uploads WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *Repo) CategoriesWithData(ctx context.Context, workflowID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT categoria FROM analise_uploads WHERE workflow_id = ?`, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ---- charts ----

func (r *Repo) CreateChart(ctx context.Context, c *storage.Chart) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}
	series, options, err := marshalChartBlobs(c)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO charts (workflow_id, nome, chart_type, source_type, source_id, label_key, series, options, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.WorkflowID, c.Nome, c.ChartType, c.SourceType, c.SourceID, c.LabelKey,
		series, options, formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
	)
	if err != nil {
		return err
	}
	c.ID, err = res.LastInsertId()
	return err
}

const chartCols = `id, workflow_id, nome, chart_type, source_type, source_id, label_key, series, options, created_at, updated_at`

func (r *Repo) ListCharts(ctx context.Context, workflowID int64) ([]storage.Chart, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+chartCols+` FROM charts WHERE workflow_id = ?
		 ORDER BY created_at DESC, id DESC`, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.Chart
	for rows.Next() {
		c, err := scanChart(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repo) GetChart(ctx context.Context, workflowID, chartID int64) (storage.Chart, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+chartCols+` FROM charts WHERE id = ? AND workflow_id = ?`, chartID, workflowID)
	return scanChart(row)
}

func (r *Repo) UpdateChart(ctx context.Context, c storage.Chart) error {
	c.UpdatedAt = time.Now().UTC()
	series, options, err := marshalChartBlobs(&c)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE charts SET nome = ?, chart_type = ?, source_type = ?, source_id = ?, label_key = ?, series = ?, options = ?, updated_at = ?
		 WHERE id = ? AND workflow_id = ?`,
		c.Nome, c.ChartType, c.SourceType, c.SourceID, c.LabelKey, series, options,
		formatTime(c.UpdatedAt), c.ID, c.WorkflowID,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *Repo) DeleteChart(ctx context.Context, workflowID, chartID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM charts WHERE id = ? AND workflow_id = ?`, chartID, workflowID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// ---- theme preference ----

func (r *Repo) GetUserTheme(ctx context.Context, userID int64) (string, error) {
	var name string
	err := r.db.QueryRowContext(ctx,
		`SELECT theme FROM user_themes WHERE user_id = ?`, userID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return name, err
}

func (r *Repo) SetUserTheme(ctx context.Context, userID int64, name string) error {
	// Requires the user_id PRIMARY KEY; OR REPLACE is the SQLite upsert.
	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO user_themes (user_id, theme) VALUES (?, ?)`, userID, name)
	return err
}

// ---- scanning helpers ----

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (storage.Workflow, error) {
	var w storage.Workflow
	var created string
	err := row.Scan(&w.ID, &w.Nome, &w.Descricao, &w.Tipo, &w.UsuarioID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return w, storage.ErrNotFound
	}
	if err != nil {
		return w, err
	}
	w.DataCriacao, err = parseTime(created)
	return w, err
}

func scanUpload(row rowScanner, withData bool) (storage.Upload, error) {
	var u storage.Upload
	var ocultas, created string
	var dados sql.NullString

	dest := []any{&u.ID, &u.WorkflowID, &u.Categoria, &u.NomeArquivo, &u.CaminhoArquivo, &ocultas, &created}
	if withData {
		dest = append(dest, &dados)
	}
	err := row.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return u, storage.ErrNotFound
	}
	if err != nil {
		return u, err
	}

	if err := json.Unmarshal([]byte(ocultas), &u.LinhasOcultas); err != nil {
		u.LinhasOcultas = nil
	}
	if withData && dados.Valid {
		var rs tabular.RecordSet
		if err := json.Unmarshal([]byte(dados.String), &rs); err == nil {
			u.Dados = rs
		}
	}
	u.CreatedAt, err = parseTime(created)
	return u, err
}

func scanUploadWithData(row rowScanner) (storage.Upload, error) {
	return scanUpload(row, true)
}

func collectUploads(rows *sql.Rows) ([]storage.Upload, error) {
	var out []storage.Upload
	for rows.Next() {
		u, err := scanUpload(rows, false)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func scanChart(row rowScanner) (storage.Chart, error) {
	var c storage.Chart
	var series, options, created, updated string
	err := row.Scan(&c.ID, &c.WorkflowID, &c.Nome, &c.ChartType, &c.SourceType, &c.SourceID,
		&c.LabelKey, &series, &options, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return c, storage.ErrNotFound
	}
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal([]byte(series), &c.Series); err != nil {
		c.Series = nil
	}
	if err := json.Unmarshal([]byte(options), &c.Options); err != nil {
		c.Options = map[string]any{}
	}
	if c.CreatedAt, err = parseTime(created); err != nil {
		return c, err
	}
	c.UpdatedAt, err = parseTime(updated)
	return c, err
}

func marshalChartBlobs(c *storage.Chart) (series string, options string, err error) {
	s, err := json.Marshal(c.Series)
	if err != nil {
		return "", "", err
	}
	if c.Options == nil {
		c.Options = map[string]any{}
	}
	o, err := json.Marshal(c.Options)
	if err != nil {
		return "", "", err
	}
	return string(s), string(o), nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func mapUniqueErr(err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return storage.ErrDuplicateName
	}
	return err
}

func emptyIfNil(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}

// formatTime stores timestamps as RFC3339Nano in UTC. TEXT affinity gives
// reliable scanning/parsing with modernc.org/sqlite.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time format: %q", s)
}
