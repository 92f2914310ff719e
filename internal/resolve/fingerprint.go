package resolve

import (
	"bytes"
	"encoding/hex"
	"strconv"

	"golang.org/x/crypto/blake2b"

	"github.com/iudanet/gophsync/internal/models"
)

// Fingerprint возвращает BLAKE2b-256 (hex) канонического представления
// полей, часов и признака удаления записи. Повторное разрешение одного
// конфликта дает тот же отпечаток.
func Fingerprint(r *models.Record) string {
	var buf bytes.Buffer
	buf.WriteString(r.ID)
	buf.WriteByte(0)
	buf.Write(models.Canonical(models.Object(r.Fields)))
	buf.WriteByte(0)

	// нулевые счетчики не влияют на сравнение часов и пропускаются
	for _, device := range r.Clock.Devices() {
		if counter := r.Clock[device]; counter != 0 {
			buf.WriteString(device)
			buf.WriteByte('=')
			buf.WriteString(strconv.FormatInt(counter, 10))
			buf.WriteByte(';')
		}
	}
	buf.WriteByte(0)
	buf.WriteString(strconv.FormatBool(r.IsDeleted()))

	sum := blake2b.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}
