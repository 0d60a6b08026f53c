package officeconv

import (
	"strings"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

// minDetectConfidence is the chardet confidence below which a guess is
// ignored in favour of Latin-1.
const minDetectConfidence = 30

// decodeUTF8BOM strips the BOM and decodes the rest as UTF-8, replacing
// invalid sequences.
func decodeUTF8BOM(data []byte) (string, error) {
	decoded, err := unicode.UTF8BOM.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func decodeLatin1(data []byte) (string, error) {
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// decodeDetected tries chardet's candidates in confidence order and returns
// the first one that decodes without replacement characters.
func decodeDetected(data []byte) (text, name string, ok bool) {
	results, err := chardet.NewTextDetector().DetectAll(data)
	if err != nil {
		return "", "", false
	}
	for _, r := range results {
		if r.Confidence < minDetectConfidence {
			break
		}
		enc := lookupEncoding(r.Charset)
		if enc == nil {
			continue
		}
		decoded, err := enc.NewDecoder().Bytes(data)
		if err != nil {
			continue
		}
		if s := string(decoded); !strings.ContainsRune(s, '\uFFFD') {
			return s, r.Charset, true
		}
	}
	return "", "", false
}

// lookupEncoding maps a charset label to an encoding. WHATWG labels are
// tried first, then the names chardet reports.
func lookupEncoding(label string) encoding.Encoding {
	if enc, _ := charset.Lookup(label); enc != nil {
		return enc
	}
	switch strings.ToLower(strings.ReplaceAll(strings.ReplaceAll(label, "-", ""), "_", "")) {
	case "utf8", "utf8bom", "ascii", "usascii":
		return unicode.UTF8
	case "utf16le":
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	case "utf16be":
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	case "iso88591", "latin1":
		return charmap.ISO8859_1
	case "shiftjis", "sjis", "cp932", "windows31j":
		return japanese.ShiftJIS
	case "eucjp":
		return japanese.EUCJP
	case "iso2022jp":
		return japanese.ISO2022JP
	case "euckr", "cp949":
		return korean.EUCKR
	case "gb2312", "gbk", "cp936":
		return simplifiedchinese.GBK
	case "gb18030":
		return simplifiedchinese.GB18030
	case "big5", "cp950":
		return traditionalchinese.Big5
	}
	return nil
}
