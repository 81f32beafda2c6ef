package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePathBareKeys(t *testing.T) {
	p, err := ParsePath("callable=add_int64,global")
	require.NoError(t, err)
	require.Equal(t, "add_int64", p.Get("callable"))
	require.True(t, p.Contains("global"))
	require.Equal(t, "", p.Get("global"))
	require.False(t, p.Contains("missing"))
}

func TestParsePathRejectsMultipleEquals(t *testing.T) {
	_, err := ParsePath("callable=a=b")
	require.Error(t, err)
}

func TestParsePathExpandsDollarVar(t *testing.T) {
	t.Setenv("METAFFI_TEST_VAR", "resolved")
	p, err := ParsePath("module=$METAFFI_TEST_VAR/pkg")
	require.NoError(t, err)
	require.Equal(t, "resolved/pkg", p.Get("module"))
}

func TestParsePathExpandsBracedVar(t *testing.T) {
	t.Setenv("METAFFI_TEST_VAR", "resolved")
	p, err := ParsePath("module=${METAFFI_TEST_VAR}-suffix")
	require.NoError(t, err)
	require.Equal(t, "resolved-suffix", p.Get("module"))
}

func TestParsePathExpandsEnvColonVar(t *testing.T) {
	t.Setenv("METAFFI_TEST_VAR", "resolved")
	p, err := ParsePath("module=$Env:METAFFI_TEST_VAR")
	require.NoError(t, err)
	require.Equal(t, "resolved", p.Get("module"))
}

func TestParsePathExpandsPercentVar(t *testing.T) {
	t.Setenv("METAFFI_TEST_VAR", "resolved")
	p, err := ParsePath("module=%METAFFI_TEST_VAR%\\pkg")
	require.NoError(t, err)
	require.Equal(t, "resolved\\pkg", p.Get("module"))
}

func TestParsePathUnsetVarExpandsEmpty(t *testing.T) {
	p, err := ParsePath("module=$METAFFI_DEFINITELY_UNSET_VAR")
	require.NoError(t, err)
	require.Equal(t, "", p.Get("module"))
}
