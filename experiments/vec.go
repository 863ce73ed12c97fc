package experiments

import "github.com/unixpickle/anyvec"

func vecToFloats(vec anyvec.Vector) []float64 {
	var res []float64
	switch data := vec.Data().(type) {
	case []float64:
		res = append(res, data...)
	case []float32:
		for _, x := range data {
			res = append(res, float64(x))
		}
	default:
		panic("unsupported numeric type")
	}
	return res
}

func floatsToVec(c anyvec.Creator, data []float64) anyvec.Vector {
	return c.MakeVectorData(c.MakeNumericList(data))
}

// splitRows splits a packed vector into n equal rows.
func splitRows(data []float64, n int) [][]float64 {
	size := len(data) / n
	res := make([][]float64, n)
	for i := range res {
		res[i] = data[i*size : (i+1)*size]
	}
	return res
}
