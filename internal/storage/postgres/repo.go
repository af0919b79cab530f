// Package postgres implements storage.Repository over pgx/v5.
//
// JSON blobs (records, hidden rows, chart series/options) are stored as
// JSONB; timestamps use TIMESTAMPTZ. Behavior matches the SQLite backend.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"painel/internal/storage"
	"painel/internal/tabular"
)

func init() {
	storage.Register("postgres", New)
}

// Repo implements storage.Repository for Postgres.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a Postgres-backed repository from a pgx DSN.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

func (r *Repo) Close() { r.pool.Close() }

var schema = []string{
	`CREATE TABLE IF NOT EXISTS workflows (
  id BIGSERIAL PRIMARY KEY,
  nome TEXT NOT NULL,
  descricao TEXT NOT NULL DEFAULT '',
  tipo TEXT NOT NULL,
  usuario_id BIGINT NOT NULL,
  data_criacao TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE (nome, usuario_id)
);`,
	`CREATE TABLE IF NOT EXISTS analise_uploads (
  id BIGSERIAL PRIMARY KEY,
  workflow_id BIGINT NOT NULL REFERENCES workflows(id),
  categoria TEXT NOT NULL DEFAULT '',
  nome_arquivo TEXT NOT NULL,
  caminho_arquivo TEXT NOT NULL,
  dados_extraidos JSONB NOT NULL,
  linhas_ocultas JSONB NOT NULL DEFAULT '[]',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	`CREATE INDEX IF NOT EXISTS idx_analise_uploads_workflow_categoria
  ON analise_uploads (workflow_id, categoria);`,
	`CREATE TABLE IF NOT EXISTS charts (
  id BIGSERIAL PRIMARY KEY,
  workflow_id BIGINT NOT NULL REFERENCES workflows(id),
  nome TEXT NOT NULL,
  chart_type TEXT NOT NULL,
  source_type TEXT NOT NULL,
  source_id TEXT NOT NULL DEFAULT '',
  label_key TEXT NOT NULL,
  series JSONB NOT NULL,
  options JSONB NOT NULL DEFAULT '{}',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	`CREATE TABLE IF NOT EXISTS user_themes (
  user_id BIGINT PRIMARY KEY,
  theme TEXT NOT NULL
);`,
}

func (r *Repo) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// ---- workflows ----

func (r *Repo) CreateWorkflow(ctx context.Context, w *storage.Workflow) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO workflows (nome, descricao, tipo, usuario_id)
		 VALUES ($1, $2, $3, $4) RETURNING id, data_criacao`,
		w.Nome, w.Descricao, w.Tipo, w.UsuarioID,
	).Scan(&w.ID, &w.DataCriacao)
	return mapUniqueErr(err)
}

func (r *Repo) ListWorkflows(ctx context.Context, ownerID int64) ([]storage.Workflow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, nome, descricao, tipo, usuario_id, data_criacao
		 FROM workflows WHERE usuario_id = $1 ORDER BY data_criacao DESC, id DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.Workflow
	for rows.Next() {
		var w storage.Workflow
		if err := rows.Scan(&w.ID, &w.Nome, &w.Descricao, &w.Tipo, &w.UsuarioID, &w.DataCriacao); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *Repo) GetWorkflow(ctx context.Context, ownerID, id int64) (storage.Workflow, error) {
	var w storage.Workflow
	err := r.pool.QueryRow(ctx,
		`SELECT id, nome, descricao, tipo, usuario_id, data_criacao
		 FROM workflows WHERE id = $1 AND usuario_id = $2`, id, ownerID,
	).Scan(&w.ID, &w.Nome, &w.Descricao, &w.Tipo, &w.UsuarioID, &w.DataCriacao)
	return w, mapNoRows(err)
}

func (r *Repo) GetWorkflowByName(ctx context.Context, ownerID int64, nome string) (storage.Workflow, error) {
	var w storage.Workflow
	err := r.pool.QueryRow(ctx,
		`SELECT id, nome, descricao, tipo, usuario_id, data_criacao
		 FROM workflows WHERE nome = $1 AND usuario_id = $2`, nome, ownerID,
	).Scan(&w.ID, &w.Nome, &w.Descricao, &w.Tipo, &w.UsuarioID, &w.DataCriacao)
	return w, mapNoRows(err)
}

func (r *Repo) UpdateWorkflow(ctx context.Context, w storage.Workflow) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE workflows SET nome = $1, descricao = $2, tipo = $3 WHERE id = $4 AND usuario_id = $5`,
		w.Nome, w.Descricao, w.Tipo, w.ID, w.UsuarioID)
	if err != nil {
		return mapUniqueErr(err)
	}
	return requireAffected(tag)
}

func (r *Repo) DeleteWorkflow(ctx context.Context, ownerID, id int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM charts WHERE workflow_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM analise_uploads WHERE workflow_id = $1`, id); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM workflows WHERE id = $1 AND usuario_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	if err := requireAffected(tag); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ---- uploads ----

func (r *Repo) CreateUpload(ctx context.Context, u *storage.Upload) error {
	dados, err := json.Marshal(u.Dados)
	if err != nil {
		return fmt.Errorf("serializar registros: %w", err)
	}
	ocultas, err := json.Marshal(emptyIfNil(u.LinhasOcultas))
	if err != nil {
		return err
	}
	err = r.pool.QueryRow(ctx,
		`INSERT INTO analise_uploads (workflow_id, categoria, nome_arquivo, caminho_arquivo, dados_extraidos, linhas_ocultas)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`,
		u.WorkflowID, u.Categoria, u.NomeArquivo, u.CaminhoArquivo, dados, ocultas,
	).Scan(&u.ID, &u.CreatedAt)
	return err
}

const uploadCols = `id, workflow_id, categoria, nome_arquivo, caminho_arquivo, linhas_ocultas, created_at`

func (r *Repo) ListUploads(ctx context.Context, workflowID int64, categoria string) ([]storage.Upload, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+uploadCols+` FROM analise_uploads
		 WHERE workflow_id = $1 AND categoria = $2
		 ORDER BY created_at DESC, id DESC`, workflowID, categoria)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUploads(rows)
}

func (r *Repo) ListUploadsByWorkflow(ctx context.Context, workflowID int64) ([]storage.Upload, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+uploadCols+` FROM analise_uploads
		 WHERE workflow_id = $1 ORDER BY created_at DESC, id DESC`, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUploads(rows)
}

func (r *Repo) GetUpload(ctx context.Context, workflowID int64, categoria string, id int64) (storage.Upload, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+uploadCols+`, dados_extraidos FROM analise_uploads
		 WHERE id = $1 AND workflow_id = $2 AND categoria = $3`, id, workflowID, categoria)
	return scanUpload(row, true)
}

func (r *Repo) LatestUpload(ctx context.Context, workflowID int64, categoria string) (storage.Upload, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+uploadCols+`, dados_extraidos FROM analise_uploads
		 WHERE workflow_id = $1 AND categoria = $2
		 ORDER BY created_at DESC, id DESC LIMIT 1`, workflowID, categoria)
	return scanUpload(row, true)
}

func (r *Repo) UpdateHiddenRows(ctx context.Context, uploadID int64, indices []int) error {
	b, err := json.Marshal(emptyIfNil(indices))
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE analise_uploads SET linhas_ocultas = $1 WHERE id = $2`, b, uploadID)
	if err != nil {
		return err
	}
	return requireAffected(tag)
}

func (r *Repo) DeleteUpload(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM analise_uploads WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(tag)
}

func (r *Repo) CategoriesWithData(ctx context.Context, workflowID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT categoria FROM analise_uploads WHERE workflow_id = $1`, workflowID)
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
	series, options, err := marshalChartBlobs(c)
	if err != nil {
		return err
	}
	err = r.pool.QueryRow(ctx,
		`INSERT INTO charts (workflow_id, nome, chart_type, source_type, source_id, label_key, series, options)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id, created_at, updated_at`,
		c.WorkflowID, c.Nome, c.ChartType, c.SourceType, c.SourceID, c.LabelKey, series, options,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return err
}

const chartCols = `id, workflow_id, nome, chart_type, source_type, source_id, label_key, series, options, created_at, updated_at`

func (r *Repo) ListCharts(ctx context.Context, workflowID int64) ([]storage.Chart, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+chartCols+` FROM charts WHERE workflow_id = $1
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
	row := r.pool.QueryRow(ctx,
		`SELECT `+chartCols+` FROM charts WHERE id = $1 AND workflow_id = $2`, chartID, workflowID)
	return scanChart(row)
}

func (r *Repo) UpdateChart(ctx context.Context, c storage.Chart) error {
	series, options, err := marshalChartBlobs(&c)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE charts SET nome = $1, chart_type = $2, source_type = $3, source_id = $4, label_key = $5, series = $6, options = $7, updated_at = now()
		 WHERE id = $8 AND workflow_id = $9`,
		c.Nome, c.ChartType, c.SourceType, c.SourceID, c.LabelKey, series, options, c.ID, c.WorkflowID)
	if err != nil {
		return err
	}
	return requireAffected(tag)
}

func (r *Repo) DeleteChart(ctx context.Context, workflowID, chartID int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM charts WHERE id = $1 AND workflow_id = $2`, chartID, workflowID)
	if err != nil {
		return err
	}
	return requireAffected(tag)
}

// ---- theme preference ----

func (r *Repo) GetUserTheme(ctx context.Context, userID int64) (string, error) {
	var name string
	err := r.pool.QueryRow(ctx,
		`SELECT theme FROM user_themes WHERE user_id = $1`, userID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return name, err
}

func (r *Repo) SetUserTheme(ctx context.Context, userID int64, name string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_themes (user_id, theme) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET theme = EXCLUDED.theme`, userID, name)
	return err
}

// ---- helpers ----

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUpload(row rowScanner, withData bool) (storage.Upload, error) {
	var u storage.Upload
	var ocultas []byte
	var dados []byte

	dest := []any{&u.ID, &u.WorkflowID, &u.Categoria, &u.NomeArquivo, &u.CaminhoArquivo, &ocultas, &u.CreatedAt}
	if withData {
		dest = append(dest, &dados)
	}
	if err := row.Scan(dest...); err != nil {
		return u, mapNoRows(err)
	}

	if err := json.Unmarshal(ocultas, &u.LinhasOcultas); err != nil {
		u.LinhasOcultas = nil
	}
	if withData && len(dados) > 0 {
		var rs tabular.RecordSet
		if err := json.Unmarshal(dados, &rs); err == nil {
			u.Dados = rs
		}
	}
	return u, nil
}

func collectUploads(rows pgx.Rows) ([]storage.Upload, error) {
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
	var series, options []byte
	err := row.Scan(&c.ID, &c.WorkflowID, &c.Nome, &c.ChartType, &c.SourceType, &c.SourceID,
		&c.LabelKey, &series, &options, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return c, mapNoRows(err)
	}
	if err := json.Unmarshal(series, &c.Series); err != nil {
		c.Series = nil
	}
	if err := json.Unmarshal(options, &c.Options); err != nil {
		c.Options = map[string]any{}
	}
	return c, nil
}

func marshalChartBlobs(c *storage.Chart) (series []byte, options []byte, err error) {
	series, err = json.Marshal(c.Series)
	if err != nil {
		return nil, nil, err
	}
	if c.Options == nil {
		c.Options = map[string]any{}
	}
	options, err = json.Marshal(c.Options)
	if err != nil {
		return nil, nil, err
	}
	return series, options, nil
}

func requireAffected(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func mapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}

// mapUniqueErr maps the Postgres unique_violation SQLSTATE (23505) to
// ErrDuplicateName.
func mapUniqueErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
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
