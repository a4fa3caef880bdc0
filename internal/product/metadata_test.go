package product

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMTD = `<?xml version="1.0" encoding="UTF-8"?>
<n1:Level-2A_User_Product xmlns:n1="https://psd-14.sentinel2.eo.esa.int/PSD/User_Product_Level-2A.xsd">
  <n1:General_Info>
    <Product_Info>
      <PRODUCT_START_TIME>2023-06-01T02:15:30.123Z</PRODUCT_START_TIME>
      <PRODUCT_STOP_TIME>2023-06-01T02:15:59.024Z</PRODUCT_STOP_TIME>
      <PRODUCT_URI>S2A_MSIL2A_20230601T021530_N0509_R003_T46RGV_20230601T041459.SAFE</PRODUCT_URI>
    </Product_Info>
  </n1:General_Info>
</n1:Level-2A_User_Product>`

func TestParseTimeWindow(t *testing.T) {
	w, err := ParseTimeWindow(strings.NewReader(sampleMTD))
	require.NoError(t, err)
	assert.Equal(t, int64(1685585730123), w.StartMS)
	assert.Equal(t, int64(1685585759024), w.EndMS)
	assert.LessOrEqual(t, w.StartMS, w.EndMS)
	assert.Equal(t, 28901*time.Millisecond, w.Duration())
}

func TestParseTimeWindow_Failures(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing stop", `<a><PRODUCT_START_TIME>2023-06-01T02:15:30.123Z</PRODUCT_START_TIME></a>`},
		{"missing both", `<a><b/></a>`},
		{"bad timestamp", `<a><PRODUCT_START_TIME>01/06/2023</PRODUCT_START_TIME><PRODUCT_STOP_TIME>2023-06-01T02:15:30.123Z</PRODUCT_STOP_TIME></a>`},
		{"inverted", `<a><PRODUCT_START_TIME>2023-06-02T00:00:00.000Z</PRODUCT_START_TIME><PRODUCT_STOP_TIME>2023-06-01T00:00:00.000Z</PRODUCT_STOP_TIME></a>`},
		{"truncated xml", `<a><PRODUCT_START_TIME>2023-06-01T02:15:30.123Z</PRODUCT_START_TIME><PRODUCT_STOP_TIME>`},
		{"empty", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTimeWindow(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestReadTimeWindow(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "MTD_MSIL2A.xml")
	require.NoError(t, os.WriteFile(p, []byte(sampleMTD), 0o644))

	w, err := ReadTimeWindow(p)
	require.NoError(t, err)
	assert.Equal(t, int64(1685585730123), w.StartMS)

	_, err = ReadTimeWindow(filepath.Join(dir, "absent.xml"))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestFindMetadata(t *testing.T) {
	root := t.TempDir()
	deep := filepath.Join(root, "A.SAFE", "GRANULE", "L2A")
	require.NoError(t, os.MkdirAll(deep, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(deep, "MTD_MSIL2A.xml"), nil, 0o644))
	shallow := filepath.Join(root, "A.SAFE", "MTD_MSIL2A.xml")
	require.NoError(t, os.WriteFile(shallow, nil, 0o644))

	got, err := FindMetadata(root, "MTD_MSIL2A.xml")
	require.NoError(t, err)
	assert.Equal(t, shallow, got)

	_, err = FindMetadata(root, "MTD_MSIL1C.xml")
	assert.ErrorIs(t, err, ErrMalformed)
}
