package vectorDB

import (
	"encoding/hex"
	"strings"

	"github.com/akolanti/TenantRAG/internal/config"
	"github.com/akolanti/TenantRAG/internal/domain/commonModels"
	"github.com/akolanti/TenantRAG/pkg/errors_i"
)

const (
	tablePrefix = "client_"
	tableSuffix = "_chunks"

	// postgres truncates longer identifiers, which would merge tenants
	MaxIdentifierLength = 63
)

// HandleFor maps a tenant id onto its store name. The hex encoding keeps the
// mapping injective and the result a safe identifier in every backend.
func HandleFor(namespace, tenantId string) (commonModels.StoreHandle, error) {
	if strings.TrimSpace(tenantId) == "" {
		return commonModels.StoreHandle{}, errors_i.New(errors_i.CodeValidationInvalidTenant, "tenant id is empty")
	}
	if namespace == "" {
		namespace = config.VectorNamespace
	}

	table := tablePrefix + hex.EncodeToString([]byte(tenantId)) + tableSuffix
	if len(table) > MaxIdentifierLength {
		return commonModels.StoreHandle{}, errors_i.New(errors_i.CodeValidationInvalidTenant, "tenant id too long for a store name",
			errors_i.FieldTenant(tenantId), errors_i.Field("max_bytes", (MaxIdentifierLength-len(tablePrefix)-len(tableSuffix))/2))
	}
	return commonModels.StoreHandle{TenantId: tenantId, Namespace: namespace, Table: table}, nil
}

// TenantFromTable inverts HandleFor. ok is false for names it did not produce.
func TenantFromTable(table string) (string, bool) {
	if !strings.HasPrefix(table, tablePrefix) || !strings.HasSuffix(table, tableSuffix) {
		return "", false
	}
	encoded := strings.TrimSuffix(strings.TrimPrefix(table, tablePrefix), tableSuffix)
	if encoded == "" || encoded != strings.ToLower(encoded) {
		return "", false
	}
	raw, err := hex.DecodeString(encoded)
	if err != nil {
		return "", false
	}
	return string(raw), true
}

// TenantFromQualified decodes a "<namespace>__<table>" name.
func TenantFromQualified(namespace, name string) (string, bool) {
	table, found := strings.CutPrefix(name, namespace+"__")
	if !found {
		return "", false
	}
	return TenantFromTable(table)
}
