package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DNDmC/mercadolivre-scraper/models"
)

func sampleProducts() []*models.Product {
	return []*models.Product{
		{
			Brand:               str("SAMSUNG"),
			Name:                str("Galaxy Book4 15.6"),
			Seller:              str("Por Samsung"),
			ReviewsRatingNumber: str("4.6"),
			ReviewsAmount:       str("(87)"),
			OldMoney:            str("4.299"),
			NewMoney:            str("3.689"),
		},
		{
			Name:     str("Notebook sem avaliações"),
			OldMoney: str("899"),
		},
	}
}

func TestCSVWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notebooks.csv")

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	if err := writer.Write(sampleProducts()); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate csv: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records=%d, want 3", len(records))
	}
	if strings.Join(records[0], ",") != strings.Join(models.Fields, ",") {
		t.Fatalf("unexpected header: %v", records[0])
	}
	sparse := records[2]
	if sparse[0] != "" || sparse[1] != "Notebook sem avaliações" || sparse[5] != "899" || sparse[6] != "" {
		t.Fatalf("unexpected sparse row: %q", sparse)
	}
}

func TestJSONWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notebooks.jsonl")

	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}
	if err := writer.Write(sampleProducts()); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close json: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open json: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines []map[string]*string
	for scanner.Scan() {
		var decoded map[string]*string
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid json line: %v", err)
		}
		lines = append(lines, decoded)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan json: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("json lines=%d, want 2", len(lines))
	}

	sparse := lines[1]
	if len(sparse) != len(models.Fields) {
		t.Fatalf("keys=%d, want all %d fields present", len(sparse), len(models.Fields))
	}
	if sparse["brand"] != nil || sparse["new_money"] != nil {
		t.Fatalf("absent fields should encode as null: %v", sparse)
	}
	if sparse["old_money"] == nil || *sparse["old_money"] != "899" {
		t.Fatalf("old_money not preserved")
	}
}

func TestDualWriterWrite(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "notebooks.csv")
	jsonPath := filepath.Join(dir, "notebooks.json")

	writer, err := NewDualWriter(csvPath, jsonPath)
	if err != nil {
		t.Fatalf("create dual writer: %v", err)
	}
	if err := writer.Write(sampleProducts()); err != nil {
		t.Fatalf("write dual: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate dual: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close dual: %v", err)
	}

	if info, err := os.Stat(csvPath); err != nil || info.Size() == 0 {
		t.Fatalf("csv file missing or empty")
	}
	if info, err := os.Stat(jsonPath); err != nil || info.Size() == 0 {
		t.Fatalf("json file missing or empty")
	}
}

func TestJSONWriterValidateEmpty(t *testing.T) {
	writer, err := NewJSONWriter(filepath.Join(t.TempDir(), "nested", "empty.jsonl"))
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}
	defer writer.Close()
	if err := writer.Validate(); err == nil {
		t.Fatalf("expected empty json file to fail validation")
	}
}

func TestProductRows(t *testing.T) {
	products := append(sampleProducts(), nil)
	rows := productRows("run-1", products)
	if len(rows) != 2 {
		t.Fatalf("rows=%d, want 2", len(rows))
	}
	if len(rows[0]) != len(postgresColumns) {
		t.Fatalf("row width=%d, want %d", len(rows[0]), len(postgresColumns))
	}
	if rows[1][0] != "run-1" {
		t.Fatalf("run id = %v, want run-1", rows[1][0])
	}
	brand, ok := rows[1][1].(*string)
	if !ok || brand != nil {
		t.Fatalf("absent brand should be a nil *string, got %#v", rows[1][1])
	}
	name, ok := rows[1][2].(*string)
	if !ok || name == nil || *name != "Notebook sem avaliações" {
		t.Fatalf("name = %#v", rows[1][2])
	}
}

func TestCreateTableSQLQuotesIdentifier(t *testing.T) {
	sql := createTableSQL([]string{"notebook listings"})
	if !strings.Contains(sql, `"notebook listings"`) {
		t.Fatalf("table name not quoted: %s", sql)
	}
	for _, col := range postgresColumns {
		if !strings.Contains(sql, col) {
			t.Fatalf("missing column %s", col)
		}
	}
}
