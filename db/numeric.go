package db

import "strconv"

func parseInt(b []byte) (int64, error) {
	return strconv.ParseInt(string(b), 10, 64)
}

func formatInt(v int64) []byte {
	return []byte(strconv.FormatInt(v, 10))
}

func parseFloat(b []byte) (float64, error) {
	return strconv.ParseFloat(string(b), 64)
}

func formatFloat(v float64) []byte {
	return []byte(strconv.FormatFloat(v, 'f', -1, 64))
}
