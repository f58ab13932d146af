package handler

import (
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/piwi3910/FabriCut/internal/errors"
	"github.com/piwi3910/FabriCut/internal/importer"
	"github.com/piwi3910/FabriCut/internal/logger"
)

// maxImportSize bounds uploaded piece lists.
const maxImportSize = 10 << 20

// ImportHandler parses uploaded piece lists into piece specs for a plan
// request. Nothing is stored.
type ImportHandler struct {
	log *logger.Logger
}

// ImportPieces POST /imports/pieces (multipart "file"; optional dxf_scale)
func (h *ImportHandler) ImportPieces(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		Error(c, errors.InvalidInput("file", "a piece list file is required"))
		return
	}
	defer file.Close()

	if header.Size > maxImportSize {
		Error(c, errors.InvalidInput("file", "file is larger than 10 MB"))
		return
	}

	var result importer.ImportResult
	switch ext := strings.ToLower(filepath.Ext(header.Filename)); ext {
	case ".xlsx", ".xlsm":
		result = importer.ImportExcelFromReader(file)
	case ".dxf":
		scale := importer.DefaultDXFScale
		if raw := c.PostForm("dxf_scale"); raw != "" {
			scale, err = strconv.ParseFloat(raw, 64)
			if err != nil || scale <= 0 {
				Error(c, errors.InvalidInput("dxf_scale", "dxf_scale must be a positive number"))
				return
			}
		}
		result = importer.ImportDXFFromReader(file, scale)
	case ".csv", ".tsv", ".txt":
		data, err := io.ReadAll(io.LimitReader(file, maxImportSize))
		if err != nil {
			Error(c, errors.InvalidInput("file", "cannot read upload"))
			return
		}
		result = importer.ImportCSVData(data)
	default:
		Error(c, errors.InvalidInput("file", "unsupported file type "+ext))
		return
	}

	if len(result.Pieces) == 0 {
		e := errors.InvalidInput("file", "no pieces could be imported")
		e.Fields = make(map[string]string, len(result.Errors))
		for i, msg := range result.Errors {
			e.Fields["errors["+strconv.Itoa(i)+"]"] = msg
		}
		Error(c, e)
		return
	}

	h.log.Info().
		Str("file", header.Filename).
		Int("pieces", len(result.Pieces)).
		Int("errors", len(result.Errors)).
		Msg("Imported piece list")
	Success(c, result)
}
