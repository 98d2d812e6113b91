package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/kshedden/gonpy"

	"github.com/ppiankov/factstudy/internal/cache"
	"github.com/ppiankov/factstudy/internal/extract"
	"github.com/ppiankov/factstudy/internal/model"
)

var (
	// ErrClaimIndex is returned for a claim index outside results.json
	ErrClaimIndex = errors.New("claim index out of range")
	// ErrNoAttributions is returned when a claim has no attribution matrix on disk
	ErrNoAttributions = errors.New("attribution matrix not found")
	// ErrUnsupportedFormat is returned for attribution files that cannot be decoded
	ErrUnsupportedFormat = errors.New("unsupported attribution format")
)

const (
	attributionsJSON   = "answer_attributions.json"
	attributionsNumpy  = "answer_attributions_np.npy"
	attributionsPickle = "answer_attributions_np.pkl"
)

// Store reads a results directory. Files are immutable while the study runs,
// so claims are parsed once and evidence page texts are cached.
type Store struct {
	dir        string
	claimsFile string
	cache      cache.Cache
	ttl        time.Duration

	once    sync.Once
	records []model.ClaimRecord
	loadErr error
}

// NewStore creates a store for cfg. A nil cache disables caching.
func NewStore(cfg model.ResultsConfig, c cache.Cache, ttl time.Duration) *Store {
	if c == nil {
		c = cache.Nop{}
	}

	return &Store{
		dir:        cfg.Dir,
		claimsFile: cfg.ClaimsFile,
		cache:      c,
		ttl:        ttl,
	}
}

// Dir returns the results directory
func (s *Store) Dir() string {
	return s.dir
}

// Claims returns every claim record in file order
func (s *Store) Claims() ([]model.ClaimRecord, error) {
	s.once.Do(func() {
		data, err := os.ReadFile(s.claimsFile)
		if err != nil {
			s.loadErr = fmt.Errorf("read claims %s: %w", s.claimsFile, err)
			return
		}

		records, err := DecodeRecords(data)
		if err != nil {
			s.loadErr = fmt.Errorf("decode claims %s: %w", s.claimsFile, err)
			return
		}

		s.records = records
	})

	return s.records, s.loadErr
}

// Claim returns the record at idx
func (s *Store) Claim(idx int) (model.ClaimRecord, error) {
	records, err := s.Claims()
	if err != nil {
		return model.ClaimRecord{}, err
	}

	if idx < 0 || idx >= len(records) {
		return model.ClaimRecord{}, fmt.Errorf("%w: %d of %d", ErrClaimIndex, idx, len(records))
	}

	return records[idx], nil
}

// Count returns the number of claims
func (s *Store) Count() (int, error) {
	records, err := s.Claims()
	return len(records), err
}

// Attributions loads the attribution matrix of claim idx.
// JSON is preferred over .npy; a pickle alone is reported as unsupported.
func (s *Store) Attributions(idx int) (model.AttributionMatrix, error) {
	base := filepath.Join(s.dir, "Answer_Attributions", "claim_"+strconv.Itoa(idx))

	jsonPath := filepath.Join(base, attributionsJSON)
	if data, err := os.ReadFile(jsonPath); err == nil {
		var m model.AttributionMatrix
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", jsonPath, err)
		}
		return m, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", jsonPath, err)
	}

	npyPath := filepath.Join(base, attributionsNumpy)
	if _, err := os.Stat(npyPath); err == nil {
		return readNpy(npyPath)
	}

	pklPath := filepath.Join(base, attributionsPickle)
	if _, err := os.Stat(pklPath); err == nil {
		return nil, fmt.Errorf("%w: %s (convert to %s or %s)", ErrUnsupportedFormat, pklPath, attributionsJSON, attributionsNumpy)
	}

	return nil, fmt.Errorf("%w: claim %d in %s", ErrNoAttributions, idx, base)
}

// readNpy decodes a 2-D float array
func readNpy(path string) (model.AttributionMatrix, error) {
	r, err := gonpy.NewFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if len(r.Shape) != 2 {
		return nil, fmt.Errorf("%w: %s has shape %v, want 2 dimensions", ErrUnsupportedFormat, path, r.Shape)
	}

	var values []float64
	switch r.Dtype {
	case "f8":
		values, err = r.GetFloat64()
	case "f4":
		var f32 []float32
		f32, err = r.GetFloat32()
		values = make([]float64, len(f32))
		for i, v := range f32 {
			values[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("%w: %s has dtype %s", ErrUnsupportedFormat, path, r.Dtype)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	rows, cols := r.Shape[0], r.Shape[1]
	if len(values) != rows*cols {
		return nil, fmt.Errorf("%w: %s has %d values for shape %v", ErrUnsupportedFormat, path, len(values), r.Shape)
	}

	m := make(model.AttributionMatrix, rows)
	for i := range m {
		m[i] = make([]float64, cols)
		for j := range m[i] {
			if r.ColumnMajor {
				m[i][j] = values[j*rows+i]
			} else {
				m[i][j] = values[i*cols+j]
			}
		}
	}

	return m, nil
}

// SearchInfos loads the search result metadata of claim idx
func (s *Store) SearchInfos(idx int) ([]model.SearchInfo, error) {
	path := filepath.Join(s.dir, "Web_Evidence", "claim_"+strconv.Itoa(idx), "search_infos.json")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var infos []model.SearchInfo
	if err := json.Unmarshal(data, &infos); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	for i := range infos {
		infos[i].Title = nfc(infos[i].Title)
	}

	return infos, nil
}

// PageText returns the flattened text of evidence page p of claim idx
func (s *Store) PageText(idx, page int) (string, error) {
	path := filepath.Join(s.dir, "Web_Evidence", "claim_"+strconv.Itoa(idx), "search_result_"+strconv.Itoa(page)+".txt")
	key := cache.Key("page", path)

	if data, ok := s.cache.Get(key); ok {
		return string(data), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	text := nfc(extract.PageText(string(raw)))
	_ = s.cache.Set(key, []byte(text), s.ttl)

	return text, nil
}
