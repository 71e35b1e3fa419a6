package forecast

import "errors"

// autocorrelation returns the sample ACF of y for lags 0..maxLag.
func autocorrelation(y []float64, maxLag int) []float64 {
	n := len(y)
	if maxLag >= n {
		maxLag = n - 1
	}
	if maxLag < 0 {
		return nil
	}

	mean := 0.0
	for _, v := range y {
		mean += v
	}
	mean /= float64(n)

	variance := 0.0
	for _, v := range y {
		diff := v - mean
		variance += diff * diff
	}
	if variance == 0 {
		return nil
	}

	acf := make([]float64, maxLag+1)
	for k := 0; k <= maxLag; k++ {
		sum := 0.0
		for i := k; i < n; i++ {
			sum += (y[i] - mean) * (y[i-k] - mean)
		}
		acf[k] = sum / variance
	}
	return acf
}

// yuleWalker solves the Yule-Walker equations for AR coefficients using the
// Levinson-Durbin recursion.
func yuleWalker(acf []float64, order int) []float64 {
	if order <= 0 || len(acf) <= order {
		return nil
	}

	phi := make([]float64, order)
	phi[0] = acf[1]
	if order == 1 {
		return phi
	}

	v := 1 - phi[0]*phi[0]
	for i := 1; i < order; i++ {
		lambda := acf[i+1]
		for j := 0; j < i; j++ {
			lambda -= phi[j] * acf[i-j]
		}
		lambda /= v

		newPhi := make([]float64, i+1)
		for j := 0; j < i; j++ {
			newPhi[j] = phi[j] - lambda*phi[i-1-j]
		}
		newPhi[i] = lambda
		copy(phi, newPhi)

		v *= 1 - lambda*lambda
		if v <= 0 {
			break
		}
	}
	return phi
}

// olsFit solves min ||y - Xb|| by the normal equations. X is row-major with
// one row per observation. Returns the coefficient vector and residuals.
func olsFit(x [][]float64, y []float64) ([]float64, []float64, error) {
	n := len(x)
	if n == 0 || n != len(y) {
		return nil, nil, errors.New("ols: design matrix and response length mismatch")
	}
	k := len(x[0])
	if n <= k {
		return nil, nil, errors.New("ols: more parameters than observations")
	}

	// Normal equations: (X'X) b = X'y.
	xtx := make([][]float64, k)
	xty := make([]float64, k)
	for i := 0; i < k; i++ {
		xtx[i] = make([]float64, k)
		for j := 0; j < k; j++ {
			sum := 0.0
			for r := 0; r < n; r++ {
				sum += x[r][i] * x[r][j]
			}
			xtx[i][j] = sum
		}
		sum := 0.0
		for r := 0; r < n; r++ {
			sum += x[r][i] * y[r]
		}
		xty[i] = sum
	}

	coeffs, err := solveLinear(xtx, xty)
	if err != nil {
		return nil, nil, err
	}

	residuals := make([]float64, n)
	for r := 0; r < n; r++ {
		pred := 0.0
		for i := 0; i < k; i++ {
			pred += coeffs[i] * x[r][i]
		}
		residuals[r] = y[r] - pred
	}
	return coeffs, residuals, nil
}

// solveLinear solves a dense square system by Gaussian elimination with
// partial pivoting. The inputs are modified in place.
func solveLinear(a [][]float64, b []float64) ([]float64, error) {
	n := len(a)
	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if abs(a[row][col]) > abs(a[pivot][col]) {
				pivot = row
			}
		}
		if abs(a[pivot][col]) < 1e-12 {
			return nil, errors.New("ols: singular design matrix")
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for row := col + 1; row < n; row++ {
			factor := a[row][col] / a[col][col]
			for c := col; c < n; c++ {
				a[row][c] -= factor * a[col][c]
			}
			b[row] -= factor * b[col]
		}
	}

	x := make([]float64, n)
	for row := n - 1; row >= 0; row-- {
		sum := b[row]
		for c := row + 1; c < n; c++ {
			sum -= a[row][c] * x[c]
		}
		x[row] = sum / a[row][row]
	}
	return x, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
