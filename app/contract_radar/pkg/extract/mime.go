package extract

import (
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var extensionTypes = map[string]string{
	"pdf":  MIMEPDF,
	"csv":  MIMECSV,
	"txt":  MIMEPlain,
	"docx": MIMEDOCX,
	"doc":  "application/msword",
	"xlsx": MIMEXLSX,
	"xls":  "application/vnd.ms-excel",
	"html": MIMEHTML,
	"htm":  MIMEHTML,
	"md":   MIMEMarkdown,
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"zip":  MIMEZIP,
	"json": MIMEJSON,
	"xml":  "application/xml",
	"eml":  MIMEEML,
}

// DetectMIME 根据文件扩展名识别类型，无法识别时按内容嗅探
func DetectMIME(name string, data []byte) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	if len(data) == 0 {
		return MIMEUnknown
	}

	detected := mimetype.Detect(data)
	for m := detected; m != nil; m = m.Parent() {
		switch t := normalizeMIME(m.String()); t {
		case MIMEPDF, MIMEZIP, MIMEHTML, MIMEJSON, MIMECSV, MIMEEML, MIMEDOCX, MIMEXLSX, MIMEPlain:
			return t
		}
	}
	return normalizeMIME(detected.String())
}
