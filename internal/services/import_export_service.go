package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/edadapt/assessment-service/internal/cache"
	"github.com/edadapt/assessment-service/internal/models"
	"github.com/edadapt/assessment-service/internal/repositories"
	"github.com/edadapt/assessment-service/internal/validator"
	"github.com/xuri/excelize/v2"
)

type importExportService struct {
	repo      repositories.Repository
	cache     cache.CacheService
	logger    *slog.Logger
	validator *validator.Validator
}

func NewImportExportService(repo repositories.Repository, cacheService cache.CacheService, logger *slog.Logger, v *validator.Validator) ImportExportService {
	return &importExportService{
		repo:      repo,
		cache:     cacheService,
		logger:    logger,
		validator: v,
	}
}

// ===== IMPORT OPERATIONS =====

// requiredImportColumns are the header names an import file must carry.
// Option columns (option_a..option_d) and passage columns are optional.
var requiredImportColumns = []string{"stage", "prompt", "correct_answer"}

func (s *importExportService) ImportQuestions(ctx context.Context, testCode, format string, r io.Reader, userID string) (*ImportResult, error) {
	test, err := s.getOwnedTest(ctx, testCode, userID)
	if err != nil {
		return nil, err
	}
	if test.Status == models.TestStatusArchived {
		return nil, ErrTestNotEditable
	}

	var rows [][]string
	switch strings.ToLower(format) {
	case "csv":
		rows, err = readCSVRows(r)
	case "xlsx", "xls":
		rows, err = readExcelRows(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrImportUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, ErrImportEmptyFile
	}

	headerMap := make(map[string]int)
	for i, header := range rows[0] {
		headerMap[strings.ToLower(strings.TrimSpace(header))] = i
	}
	for _, col := range requiredImportColumns {
		if _, exists := headerMap[col]; !exists {
			return nil, NewValidationError("headers", fmt.Sprintf("missing required column: %s", col), col)
		}
	}

	result := &ImportResult{}
	positions := make(map[models.DifficultyTier]int)
	var questions []*models.Question

	for rowIndex, row := range rows[1:] {
		question, warning := s.parseImportRow(row, headerMap, rowIndex+2, testCode, userID, positions)
		if warning != "" {
			result.Warnings = append(result.Warnings, warning)
			result.Skipped++
			continue
		}
		questions = append(questions, question)
		result.Imported++
	}

	if len(questions) == 0 {
		return nil, ErrImportEmptyFile
	}

	if err := s.repo.Question().ReplaceForTest(ctx, testCode, questions); err != nil {
		return nil, fmt.Errorf("replace questions: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.DeletePattern(ctx, questionCachePattern(testCode)); err != nil {
			s.logger.Warn("Failed to invalidate question cache", "test_code", testCode, "error", err)
		}
	}

	s.logger.Info("Question import completed",
		"test_code", testCode,
		"format", format,
		"imported", result.Imported,
		"skipped", result.Skipped)
	return result, nil
}

// parseImportRow builds one question from a data row, returning a warning
// message instead of a question when the row is unusable.
func (s *importExportService) parseImportRow(row []string, headerMap map[string]int, rowNum int, testCode, userID string, positions map[models.DifficultyTier]int) (*models.Question, string) {
	cell := func(name string) string {
		idx, ok := headerMap[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	stage := models.DifficultyTier(strings.ToLower(cell("stage")))
	if !stage.Valid() {
		return nil, fmt.Sprintf("row %d: invalid stage %q", rowNum, cell("stage"))
	}

	prompt := cell("prompt")
	if prompt == "" {
		return nil, fmt.Sprintf("row %d: empty prompt", rowNum)
	}

	var options []string
	for _, col := range []string{"option_a", "option_b", "option_c", "option_d"} {
		if v := cell(col); v != "" {
			options = append(options, v)
		}
	}

	correct := cell("correct_answer")
	if correct == "" {
		return nil, fmt.Sprintf("row %d: empty correct_answer", rowNum)
	}
	// A single letter refers to the option column of the same name.
	if len(correct) == 1 {
		idx := int(correct[0]|0x20) - 'a'
		if idx < 0 || idx >= len(options) {
			return nil, fmt.Sprintf("row %d: correct_answer letter %q out of range", rowNum, correct)
		}
		correct = options[idx]
	} else if len(options) > 0 && !containsOption(options, correct) {
		return nil, fmt.Sprintf("row %d: correct_answer not among options", rowNum)
	}

	q := &models.Question{
		TestCode:      testCode,
		Stage:         stage,
		Position:      positions[stage],
		Prompt:        prompt,
		CorrectAnswer: &correct,
		CreatedBy:     userID,
	}
	if title := cell("passage_title"); title != "" {
		q.PassageTitle = &title
	}
	if text := cell("passage_text"); text != "" {
		q.PassageText = &text
	}
	if err := q.SetOptionValues(options); err != nil {
		return nil, fmt.Sprintf("row %d: encode options: %v", rowNum, err)
	}

	positions[stage]++
	return q, ""
}

func readCSVRows(r io.Reader) ([][]string, error) {
	csvReader := csv.NewReader(r)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	rows, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	return rows, nil
}

func readExcelRows(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, NewValidationError("file", "Excel file has no sheets", nil)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read Excel rows: %w", err)
	}
	return rows, nil
}

// ===== EXPORT OPERATIONS =====

var resultExportHeaders = []string{
	"Attempt ID", "Student ID", "Assigned Tier", "Score", "Time Spent (s)", "Completed At",
}

func (s *importExportService) ExportResults(ctx context.Context, testCode, userID string) ([]byte, error) {
	if _, err := s.getOwnedTest(ctx, testCode, userID); err != nil {
		return nil, err
	}

	results, _, err := s.repo.Result().GetByTest(ctx, testCode, repositories.ResultFilters{})
	if err != nil {
		return nil, fmt.Errorf("load results: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Results"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	for col, header := range resultExportHeaders {
		cellName, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cellName, header); err != nil {
			return nil, err
		}
	}

	for i, r := range results {
		tier := ""
		if r.AssignedTier != nil {
			tier = string(*r.AssignedTier)
		}
		values := []interface{}{
			r.AttemptID, r.StudentID, tier, r.Score, r.TimeSpent,
			r.CompletedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cellName, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cellName, v); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render workbook: %w", err)
	}

	s.logger.Info("Results exported", "test_code", testCode, "rows", len(results))
	return buf.Bytes(), nil
}

func (s *importExportService) getOwnedTest(ctx context.Context, code, userID string) (*models.Test, error) {
	test, err := s.repo.Test().GetByCode(ctx, code)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("get test: %w", err)
	}
	if test.CreatedBy != userID {
		return nil, NewPermissionError(userID, "test "+code, "import/export", "not the creator")
	}
	return test, nil
}
