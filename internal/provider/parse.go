package provider

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/josuejuca/freeswitch-logs/internal/domain/model"
)

// rawRow — одна строка вывода fs_cli в виде "колонка → значение".
type rawRow map[string]string

// parseResult — результат разбора вывода.
// skipped — строки без reg_user, не попавшие в rows.
// invalid — строки в rows, у которых обнулены неразборчивые числовые поля.
type parseResult struct {
	rows    []model.RegistrationSnapshot
	skipped []string
	invalid []string
}

// parse разбирает вывод fs_cli в указанном формате.
// capturedAt проставляется всем строкам.
func parse(format string, data []byte, capturedAt time.Time) (*parseResult, error) {
	var (
		raw []rawRow
		err error
	)
	switch format {
	case FormatJSON:
		raw, err = decodeJSON(data)
	case FormatXML:
		raw, err = decodeXML(data)
	case FormatCSV:
		raw, err = decodeCSV(data)
	default:
		return nil, fmt.Errorf("неизвестный формат вывода: %q", format)
	}
	if err != nil {
		return nil, err
	}

	res := &parseResult{rows: make([]model.RegistrationSnapshot, 0, len(raw))}
	for i, r := range raw {
		s, problems, err := r.toSnapshot(capturedAt)
		if err != nil {
			res.skipped = append(res.skipped, fmt.Sprintf("строка %d: %v", i+1, err))
			continue
		}
		for _, p := range problems {
			res.invalid = append(res.invalid, fmt.Sprintf("строка %d (%s): %s", i+1, s.RegUser, p))
		}
		res.rows = append(res.rows, s)
	}
	return res, nil
}

var errMissingRegUser = errors.New("отсутствует reg_user")

// toSnapshot строит snapshot из строки. Ошибка — только при отсутствии reg_user:
// для членства в snapshot достаточно его одного. Неразборчивые expires и
// network_port обнуляются и возвращаются в problems.
func (r rawRow) toSnapshot(capturedAt time.Time) (s model.RegistrationSnapshot, problems []string, err error) {
	s = model.RegistrationSnapshot{
		RegUser:      strings.TrimSpace(r["reg_user"]),
		Realm:        r["realm"],
		Token:        r["token"],
		URL:          r["url"],
		NetworkIP:    r["network_ip"],
		NetworkProto: r["network_proto"],
		Hostname:     r["hostname"],
		CreatedAt:    capturedAt,
	}
	if s.RegUser == "" {
		return s, nil, errMissingRegUser
	}

	if v := strings.TrimSpace(r["expires"]); v != "" {
		if expires, perr := strconv.ParseInt(v, 10, 64); perr == nil {
			s.Expires = expires
		} else {
			problems = append(problems, fmt.Sprintf("некорректный expires %q", v))
		}
	}
	if v := strings.TrimSpace(r["network_port"]); v != "" {
		if port, perr := strconv.Atoi(v); perr == nil {
			s.NetworkPort = port
		} else {
			problems = append(problems, fmt.Sprintf("некорректный network_port %q", v))
		}
	}

	// FreeSWITCH называет колонку metastore, в старых версиях — metadata
	meta, ok := r["metastore"]
	if !ok {
		meta, ok = r["metadata"]
	}
	if ok && meta != "" {
		s.Metadata = &meta
	}
	return s, problems, nil
}

// --- JSON ---

// jsonResult — {"row_count":N,"rows":[...]}. При N=0 ключ rows отсутствует.
type jsonResult struct {
	RowCount int                          `json:"row_count"`
	Rows     []map[string]json.RawMessage `json:"rows"`
}

func decodeJSON(data []byte) ([]rawRow, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("пустой вывод")
	}

	var res jsonResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("разбор JSON: %w", err)
	}

	rows := make([]rawRow, 0, len(res.Rows))
	for _, obj := range res.Rows {
		row := make(rawRow, len(obj))
		for k, v := range obj {
			row[k] = jsonScalar(v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// jsonScalar приводит строку или число к строке. Прочие значения — пустая строка.
func jsonScalar(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String()
	}
	return ""
}

// --- XML ---

// xmlResult — <result row_count="N"><row row_id="1"><reg_user>…</reg_user>…</row></result>.
type xmlResult struct {
	XMLName  xml.Name `xml:"result"`
	RowCount int      `xml:"row_count,attr"`
	Rows     []xmlRow `xml:"row"`
}

type xmlRow struct {
	Fields []xmlField `xml:",any"`
}

type xmlField struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

func decodeXML(data []byte) ([]rawRow, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("пустой вывод")
	}

	var res xmlResult
	if err := xml.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("разбор XML: %w", err)
	}

	rows := make([]rawRow, 0, len(res.Rows))
	for _, r := range res.Rows {
		row := make(rawRow, len(r.Fields))
		for _, f := range r.Fields {
			row[f.XMLName.Local] = strings.TrimSpace(f.Value)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// --- CSV ---

// decodeCSV разбирает табличный вывод: заголовок, строки данных, пустая строка
// и итог вида "N total.". При нуле регистраций fs_cli печатает только итог
// "0 total." без заголовка.
func decodeCSV(data []byte) ([]rawRow, error) {
	var lines []string
	total := -1
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if n, ok := parseTotalLine(line); ok {
			total = n
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		if total == 0 {
			return []rawRow{}, nil
		}
		return nil, errors.New("пустой вывод")
	}

	r := csv.NewReader(strings.NewReader(strings.Join(lines, "\n")))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("разбор заголовка CSV: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	rows := make([]rawRow, 0)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("разбор CSV: %w", err)
		}
		row := make(rawRow, len(header))
		for i, name := range header {
			if i < len(rec) {
				row[name] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// parseTotalLine распознаёт итог "N total." и возвращает N.
func parseTotalLine(line string) (int, bool) {
	fields := strings.Fields(line)
	if len(fields) != 2 || fields[1] != "total." {
		return 0, false
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
