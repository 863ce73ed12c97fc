package onpolicy

import "github.com/unixpickle/anyvec"

func vecToFloats(vec anyvec.Vector) []float64 {
	var res []float64
	switch data := vec.Data().(type) {
	case []float64:
		res = data
	case []float32:
		for _, x := range data {
			res = append(res, float64(x))
		}
	default:
		panic("unsupported numeric type")
	}
	return res
}

func numToFloat(num anyvec.Numeric) float64 {
	switch num := num.(type) {
	case float64:
		return num
	case float32:
		return float64(num)
	default:
		panic("unsupported numeric type")
	}
}

func floatsToVec(c anyvec.Creator, data []float64) anyvec.Vector {
	return c.MakeVectorData(c.MakeNumericList(data))
}

// sumFloat sums the components of a vector.
func sumFloat(vec anyvec.Vector) float64 {
	return numToFloat(anyvec.Sum(vec))
}

// flatten joins rows into a single slice.
func flatten(rows [][]float64) []float64 {
	var n int
	for _, row := range rows {
		n += len(row)
	}
	res := make([]float64, 0, n)
	for _, row := range rows {
		res = append(res, row...)
	}
	return res
}

func makeRows(numRows, rowSize int) [][]float64 {
	backing := make([]float64, numRows*rowSize)
	res := make([][]float64, numRows)
	for i := range res {
		res[i] = backing[i*rowSize : (i+1)*rowSize]
	}
	return res
}
