package sqlite

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"painel/internal/storage"
	"painel/internal/tabular"
)

func testRepo(t *testing.T) storage.Repository {
	t.Helper()
	repo, err := New(context.Background(), storage.Config{Kind: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(repo.Close)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return repo
}

func mustWorkflow(t *testing.T, repo storage.Repository, owner int64, nome, tipo string) storage.Workflow {
	t.Helper()
	w := storage.Workflow{Nome: nome, Descricao: "d", Tipo: tipo, UsuarioID: owner}
	if err := repo.CreateWorkflow(context.Background(), &w); err != nil {
		t.Fatalf("CreateWorkflow(%s): %v", nome, err)
	}
	return w
}

func sampleRecords(values ...string) tabular.RecordSet {
	rs := make(tabular.RecordSet, 0, len(values))
	for _, v := range values {
		rec := tabular.NewRecord()
		rec.Set("indicador", v)
		rec.Set("valor", "0.1034")
		rs = append(rs, rec)
	}
	return rs
}

func TestWorkflowCRUD(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	w := mustWorkflow(t, repo, 1, "fechamento", storage.TipoAnaliseJP)
	if w.ID == 0 || w.DataCriacao.IsZero() {
		t.Fatalf("identity not filled: %+v", w)
	}

	got, err := repo.GetWorkflow(ctx, 1, w.ID)
	if err != nil {
		t.Fatalf("GetWorkflow: %v", err)
	}
	if got.Nome != "fechamento" || got.Tipo != storage.TipoAnaliseJP {
		t.Fatalf("round trip: %+v", got)
	}

	// Owner scoping: another user cannot see it.
	if _, err := repo.GetWorkflow(ctx, 2, w.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for wrong owner, got %v", err)
	}

	got.Descricao = "atualizado"
	if err := repo.UpdateWorkflow(ctx, got); err != nil {
		t.Fatalf("UpdateWorkflow: %v", err)
	}
	again, _ := repo.GetWorkflow(ctx, 1, w.ID)
	if again.Descricao != "atualizado" {
		t.Fatalf("update lost: %+v", again)
	}

	byName, err := repo.GetWorkflowByName(ctx, 1, "fechamento")
	if err != nil || byName.ID != w.ID {
		t.Fatalf("GetWorkflowByName: %v %+v", err, byName)
	}

	list, err := repo.ListWorkflows(ctx, 1)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListWorkflows: %v %d", err, len(list))
	}
}

func TestWorkflowNameUniquePerOwner(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	mustWorkflow(t, repo, 1, "mensal", storage.TipoBalancete)

	dup := storage.Workflow{Nome: "mensal", Tipo: storage.TipoBalancete, UsuarioID: 1}
	if err := repo.CreateWorkflow(ctx, &dup); !errors.Is(err, storage.ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}

	// Same name under another owner is fine.
	other := storage.Workflow{Nome: "mensal", Tipo: storage.TipoBalancete, UsuarioID: 2}
	if err := repo.CreateWorkflow(ctx, &other); err != nil {
		t.Fatalf("cross-owner name rejected: %v", err)
	}
}

func TestUploadRoundTrip(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	w := mustWorkflow(t, repo, 1, "wf", storage.TipoAnaliseJP)

	u := storage.Upload{
		WorkflowID:     w.ID,
		Categoria:      "notas",
		NomeArquivo:    "dados.csv",
		CaminhoArquivo: "/tmp/x.csv",
		Dados:          sampleRecords("receita", "despesa"),
		LinhasOcultas:  []int{},
	}
	if err := repo.CreateUpload(ctx, &u); err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}
	if u.ID == 0 {
		t.Fatalf("id not assigned")
	}

	got, err := repo.GetUpload(ctx, w.ID, "notas", u.ID)
	if err != nil {
		t.Fatalf("GetUpload: %v", err)
	}
	if len(got.Dados) != 2 {
		t.Fatalf("records lost: %d", len(got.Dados))
	}
	// The JSON blob must preserve literal numeric text.
	if got.Dados[0].Value("valor") != "0.1034" {
		t.Fatalf("numeric text drifted: %q", got.Dados[0].Value("valor"))
	}
	if !reflect.DeepEqual(got.Dados[0].Keys(), []string{"indicador", "valor"}) {
		t.Fatalf("key order lost: %v", got.Dados[0].Keys())
	}
	if got.LinhasOcultas == nil {
		t.Fatalf("hidden list must round-trip as empty, not nil")
	}
}

func TestLatestUploadOrdersByCreation(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	w := mustWorkflow(t, repo, 1, "wf", storage.TipoAnaliseJP)

	first := storage.Upload{WorkflowID: w.ID, Categoria: "notas", NomeArquivo: "a.csv", Dados: sampleRecords("a")}
	if err := repo.CreateUpload(ctx, &first); err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	second := storage.Upload{WorkflowID: w.ID, Categoria: "notas", NomeArquivo: "b.csv", Dados: sampleRecords("b")}
	if err := repo.CreateUpload(ctx, &second); err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}

	latest, err := repo.LatestUpload(ctx, w.ID, "notas")
	if err != nil {
		t.Fatalf("LatestUpload: %v", err)
	}
	if latest.NomeArquivo != "b.csv" {
		t.Fatalf("latest = %q, want b.csv", latest.NomeArquivo)
	}

	if _, err := repo.LatestUpload(ctx, w.ID, "colaboradores"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("empty category should be ErrNotFound, got %v", err)
	}
}

func TestUpdateHiddenRows(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	w := mustWorkflow(t, repo, 1, "wf", storage.TipoAnaliseJP)

	u := storage.Upload{WorkflowID: w.ID, Categoria: "notas", NomeArquivo: "a.csv", Dados: sampleRecords("a", "b", "c")}
	if err := repo.CreateUpload(ctx, &u); err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}

	if err := repo.UpdateHiddenRows(ctx, u.ID, []int{0, 2}); err != nil {
		t.Fatalf("UpdateHiddenRows: %v", err)
	}
	got, _ := repo.GetUpload(ctx, w.ID, "notas", u.ID)
	if !reflect.DeepEqual(got.LinhasOcultas, []int{0, 2}) {
		t.Fatalf("hidden = %v", got.LinhasOcultas)
	}

	if err := repo.UpdateHiddenRows(ctx, 9999, []int{1}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCategoriesWithData(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	w := mustWorkflow(t, repo, 1, "wf", storage.TipoAnaliseJP)

	for _, cat := range []string{"notas", "notas", "colaboradores"} {
		u := storage.Upload{WorkflowID: w.ID, Categoria: cat, NomeArquivo: "a.csv", Dados: sampleRecords("x")}
		if err := repo.CreateUpload(ctx, &u); err != nil {
			t.Fatalf("CreateUpload: %v", err)
		}
	}

	cats, err := repo.CategoriesWithData(ctx, w.ID)
	if err != nil {
		t.Fatalf("CategoriesWithData: %v", err)
	}
	if len(cats) != 2 {
		t.Fatalf("categories = %v", cats)
	}
}

func TestChartCRUD(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	w := mustWorkflow(t, repo, 1, "wf", storage.TipoAnaliseJP)

	c := storage.Chart{
		WorkflowID: w.ID,
		Nome:       "Receitas",
		ChartType:  "bar",
		SourceType: storage.TipoAnaliseJP,
		SourceID:   "notas",
		LabelKey:   "indicador",
		Series:     []storage.ChartSeries{{ValueKey: "valor", Label: "Valor", Color: "#FF0000"}},
		Options:    map[string]any{"stacked": true, "series_colors": map[string]string{"valor": "#FF0000"}},
	}
	if err := repo.CreateChart(ctx, &c); err != nil {
		t.Fatalf("CreateChart: %v", err)
	}
	if c.ID == 0 || c.CreatedAt.IsZero() {
		t.Fatalf("identity not filled: %+v", c)
	}

	got, err := repo.GetChart(ctx, w.ID, c.ID)
	if err != nil {
		t.Fatalf("GetChart: %v", err)
	}
	if got.Series[0].Color != "#FF0000" {
		t.Fatalf("series blob lost: %+v", got.Series)
	}
	if got.Options["stacked"] != true {
		t.Fatalf("options blob lost: %#v", got.Options)
	}

	got.Nome = "Receitas 2"
	if err := repo.UpdateChart(ctx, got); err != nil {
		t.Fatalf("UpdateChart: %v", err)
	}
	list, err := repo.ListCharts(ctx, w.ID)
	if err != nil || len(list) != 1 || list[0].Nome != "Receitas 2" {
		t.Fatalf("ListCharts after update: %v %+v", err, list)
	}

	if err := repo.DeleteChart(ctx, w.ID, c.ID); err != nil {
		t.Fatalf("DeleteChart: %v", err)
	}
	if _, err := repo.GetChart(ctx, w.ID, c.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestDeleteWorkflowCascades(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	w := mustWorkflow(t, repo, 1, "wf", storage.TipoAnaliseJP)

	u := storage.Upload{WorkflowID: w.ID, Categoria: "notas", NomeArquivo: "a.csv", Dados: sampleRecords("x")}
	if err := repo.CreateUpload(ctx, &u); err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}
	c := storage.Chart{WorkflowID: w.ID, Nome: "g", ChartType: "bar", SourceType: storage.TipoAnaliseJP, SourceID: "notas", LabelKey: "indicador"}
	if err := repo.CreateChart(ctx, &c); err != nil {
		t.Fatalf("CreateChart: %v", err)
	}

	if err := repo.DeleteWorkflow(ctx, 1, w.ID); err != nil {
		t.Fatalf("DeleteWorkflow: %v", err)
	}
	if _, err := repo.GetWorkflow(ctx, 1, w.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("workflow survived delete")
	}
	if _, err := repo.GetUpload(ctx, w.ID, "notas", u.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("upload survived cascade")
	}
	if _, err := repo.GetChart(ctx, w.ID, c.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("chart survived cascade")
	}

	// Deleting someone else's workflow must not cascade.
	w2 := mustWorkflow(t, repo, 1, "outro", storage.TipoBalancete)
	if err := repo.DeleteWorkflow(ctx, 2, w2.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for wrong owner, got %v", err)
	}
}

func TestUserTheme(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	name, err := repo.GetUserTheme(ctx, 1)
	if err != nil {
		t.Fatalf("GetUserTheme: %v", err)
	}
	if name != "" {
		t.Fatalf("unset theme should read empty, got %q", name)
	}

	if err := repo.SetUserTheme(ctx, 1, "neon"); err != nil {
		t.Fatalf("SetUserTheme: %v", err)
	}
	if err := repo.SetUserTheme(ctx, 1, "dark"); err != nil {
		t.Fatalf("SetUserTheme overwrite: %v", err)
	}
	name, _ = repo.GetUserTheme(ctx, 1)
	if name != "dark" {
		t.Fatalf("theme = %q, want dark", name)
	}
}
