package utils

import (
	"fmt"

	"github.com/google/uuid"
)

func GetNewUUID() string {
	return uuid.New().String()
}

// PointIdFor derives a stable id for a passage so re-inserting the same chunk overwrites it.
func PointIdFor(tenantId, documentId string, chunkIndex int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, fmt.Appendf(nil, "%s/%s/%d", tenantId, documentId, chunkIndex)).String()
}
