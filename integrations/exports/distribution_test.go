package exports

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"supernode/native/supernode"
)

func sampleDistribution() *supernode.Distribution {
	credit := func(b byte, share, total int64, minipools uint64) supernode.Credit {
		var addr common.Address
		addr[19] = b
		return supernode.Credit{
			Address:        addr,
			Share:          big.NewInt(share),
			Minipools:      minipools,
			ShareCredit:    big.NewInt(total),
			PoolFeeCredit:  big.NewInt(0),
			OperatorCredit: big.NewInt(0),
			Total:          big.NewInt(total),
		}
	}
	var pool common.Address
	pool[0] = 0xaa
	return &supernode.Distribution{
		Pool:      pool,
		Track:     supernode.TrackToken,
		Applied:   true,
		Timestamp: 1_700_000_000,
		Credits:   []supernode.Credit{credit(2, 1, 2, 0), credit(3, 1, 2, 1)},
	}
}

func TestDistributionCSV(t *testing.T) {
	data, checksum, err := DistributionCSV(sampleDistribution())
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if len(checksum) != 64 {
		t.Fatalf("unexpected checksum %q", checksum)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(lines))
	}
	if lines[0] != strings.Join(csvHeader, ",") {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if !strings.Contains(lines[2], ",token,") || !strings.Contains(lines[2], "2023-11-14T22:13:20Z") {
		t.Fatalf("unexpected row %q", lines[2])
	}
}

func TestDistributionJSONL(t *testing.T) {
	data, _, err := DistributionJSONL(sampleDistribution())
	if err != nil {
		t.Fatalf("jsonl: %v", err)
	}
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var row map[string]interface{}
	if err := json.Unmarshal(lines[1], &row); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if row["total"] != "2" || row["minipools"] != float64(1) {
		t.Fatalf("unexpected row %v", row)
	}
}

func TestDistributionParquet(t *testing.T) {
	data, checksum, err := DistributionParquet(sampleDistribution())
	if err != nil {
		t.Fatalf("parquet: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("PAR1")) || !bytes.HasSuffix(data, []byte("PAR1")) {
		t.Fatalf("missing parquet magic")
	}
	if checksum == "" {
		t.Fatalf("missing checksum")
	}
}

func TestExportFormats(t *testing.T) {
	d := sampleDistribution()
	for format, contentType := range map[string]string{"CSV": "text/csv", "jsonl": "application/x-ndjson", "parquet": "application/vnd.apache.parquet"} {
		_, _, ct, err := Export(format, d)
		if err != nil || ct != contentType {
			t.Fatalf("%s: content type %q err %v", format, ct, err)
		}
	}
	if _, _, _, err := Export("xml", d); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}
