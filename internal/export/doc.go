// Package export renders recorded runs as image files (gonum/plot) and as
// interactive HTML pages (go-echarts).
package export
