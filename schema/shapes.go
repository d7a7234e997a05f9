package schema

// PanelShape is the panel-specific parsed form of a structured value.
type PanelShape interface {
	ShapeKind() PanelKind
}

// PlaygroundShape carries whatever the program returned.
type PlaygroundShape struct {
	Structured    any
	HasStructured bool
	// JSON is the indented JSON form of Structured, empty when absent.
	JSON  string
	Value string
}

// RegressionShape is a fitted line plus the points it was fitted to.
type RegressionShape struct {
	Intercept float64
	Slope     float64
	R2        float64
	Yhat      []float64
	X         []float64
	Y         []float64
}

// StatsShape carries summary statistics for a bar chart.
type StatsShape struct {
	Values []float64
	Sorted []float64
	Labels []string
	Mean   float64
	SD     float64
}

// DataFrameRow is one row of the data frame panel.
type DataFrameRow struct {
	Name  string
	Age   float64
	Score float64
	Pass  bool
}

// DataFrameShape is a table with summary values.
type DataFrameShape struct {
	Rows      []DataFrameRow
	MeanScore float64
	MeanAge   float64
}

// TextShape is console-only output.
type TextShape struct {
	Lines []string
}

// TimeSeriesShape is a series with its moving average.
type TimeSeriesShape struct {
	Original []float64
	MA       []float64
	Window   int
	Mean     float64
	SD       float64
	Min      float64
	Max      float64
}

func (PlaygroundShape) ShapeKind() PanelKind { return PanelPlayground }
func (RegressionShape) ShapeKind() PanelKind { return PanelRegression }
func (StatsShape) ShapeKind() PanelKind      { return PanelStats }
func (DataFrameShape) ShapeKind() PanelKind  { return PanelDataFrame }
func (TextShape) ShapeKind() PanelKind       { return PanelStrings }
func (TimeSeriesShape) ShapeKind() PanelKind { return PanelTimeSeries }
