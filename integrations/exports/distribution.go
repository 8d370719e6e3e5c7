package exports

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"supernode/native/supernode"
)

// Supported export formats.
const (
	FormatCSV     = "csv"
	FormatJSONL   = "jsonl"
	FormatParquet = "parquet"
)

// ErrUnknownFormat is returned for formats other than csv, jsonl and parquet.
var ErrUnknownFormat = errors.New("exports: unknown format")

// Row is one actor's line in a distribution export.
type Row struct {
	Pool           string
	Track          string
	Address        string
	Share          string
	Minipools      uint64
	ShareCredit    string
	PoolFeeCredit  string
	OperatorCredit string
	Total          string
	DistributedAt  string
}

// Rows flattens a distribution into export rows, one per credited actor.
func Rows(d *supernode.Distribution) []Row {
	if d == nil {
		return nil
	}
	at := time.Unix(d.Timestamp, 0).UTC().Format(time.RFC3339)
	rows := make([]Row, 0, len(d.Credits))
	for _, c := range d.Credits {
		rows = append(rows, Row{
			Pool:           d.Pool.Hex(),
			Track:          d.Track.String(),
			Address:        c.Address.Hex(),
			Share:          bigString(c.Share),
			Minipools:      c.Minipools,
			ShareCredit:    bigString(c.ShareCredit),
			PoolFeeCredit:  bigString(c.PoolFeeCredit),
			OperatorCredit: bigString(c.OperatorCredit),
			Total:          bigString(c.Total),
			DistributedAt:  at,
		})
	}
	return rows
}

// Export renders d in format and returns the payload, its SHA-256 checksum
// and a content type.
func Export(format string, d *supernode.Distribution) ([]byte, string, string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatCSV:
		data, sum, err := DistributionCSV(d)
		return data, sum, "text/csv", err
	case FormatJSONL:
		data, sum, err := DistributionJSONL(d)
		return data, sum, "application/x-ndjson", err
	case FormatParquet:
		data, sum, err := DistributionParquet(d)
		return data, sum, "application/vnd.apache.parquet", err
	default:
		return nil, "", "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

var csvHeader = []string{
	"pool", "track", "address", "share", "minipools",
	"share_credit", "pool_fee_credit", "operator_credit", "total", "distributed_at",
}

// DistributionCSV builds a CSV export and returns it with its checksum.
func DistributionCSV(d *supernode.Distribution) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	w := csv.NewWriter(buffer)
	if err := w.Write(csvHeader); err != nil {
		return nil, "", err
	}
	for _, row := range Rows(d) {
		record := []string{
			row.Pool, row.Track, row.Address, row.Share,
			strconv.FormatUint(row.Minipools, 10),
			row.ShareCredit, row.PoolFeeCredit, row.OperatorCredit, row.Total,
			row.DistributedAt,
		}
		if err := w.Write(record); err != nil {
			return nil, "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, "", err
	}
	return checksummed(buffer.Bytes())
}

// DistributionJSONL builds a JSON Lines export and returns it with its checksum.
func DistributionJSONL(d *supernode.Distribution) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	for _, row := range Rows(d) {
		payload := map[string]interface{}{
			"pool":            row.Pool,
			"track":           row.Track,
			"address":         row.Address,
			"share":           row.Share,
			"minipools":       row.Minipools,
			"share_credit":    row.ShareCredit,
			"pool_fee_credit": row.PoolFeeCredit,
			"operator_credit": row.OperatorCredit,
			"total":           row.Total,
			"distributed_at":  row.DistributedAt,
		}
		if err := encoder.Encode(payload); err != nil {
			return nil, "", err
		}
	}
	return checksummed(buffer.Bytes())
}

type parquetRow struct {
	Pool           string `parquet:"name=pool, type=BYTE_ARRAY, convertedtype=UTF8"`
	Track          string `parquet:"name=track, type=BYTE_ARRAY, convertedtype=UTF8"`
	Address        string `parquet:"name=address, type=BYTE_ARRAY, convertedtype=UTF8"`
	Share          string `parquet:"name=share, type=BYTE_ARRAY, convertedtype=UTF8"`
	Minipools      int64  `parquet:"name=minipools, type=INT64"`
	ShareCredit    string `parquet:"name=share_credit, type=BYTE_ARRAY, convertedtype=UTF8"`
	PoolFeeCredit  string `parquet:"name=pool_fee_credit, type=BYTE_ARRAY, convertedtype=UTF8"`
	OperatorCredit string `parquet:"name=operator_credit, type=BYTE_ARRAY, convertedtype=UTF8"`
	Total          string `parquet:"name=total, type=BYTE_ARRAY, convertedtype=UTF8"`
	DistributedAt  string `parquet:"name=distributed_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// DistributionParquet builds a Snappy-compressed Parquet export and returns it
// with its checksum. Amounts stay decimal strings to keep full precision.
func DistributionParquet(d *supernode.Distribution) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	fw := writerfile.NewWriterFile(buffer)
	pw, err := writer.NewParquetWriter(fw, new(parquetRow), 1)
	if err != nil {
		return nil, "", fmt.Errorf("exports: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, row := range Rows(d) {
		pr := &parquetRow{
			Pool:           row.Pool,
			Track:          row.Track,
			Address:        row.Address,
			Share:          row.Share,
			Minipools:      int64(row.Minipools),
			ShareCredit:    row.ShareCredit,
			PoolFeeCredit:  row.PoolFeeCredit,
			OperatorCredit: row.OperatorCredit,
			Total:          row.Total,
			DistributedAt:  row.DistributedAt,
		}
		if err := pw.Write(pr); err != nil {
			_ = pw.WriteStop()
			return nil, "", fmt.Errorf("exports: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, "", fmt.Errorf("exports: parquet flush: %w", err)
	}
	return checksummed(buffer.Bytes())
}

func checksummed(data []byte) ([]byte, string, error) {
	checksum := sha256.Sum256(data)
	return data, hex.EncodeToString(checksum[:]), nil
}
