package api

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aisgo/ais-modelcode/engine"
	"github.com/aisgo/ais-modelcode/errors"
	"github.com/aisgo/ais-modelcode/model"

	"github.com/xuri/excelize/v2"
)

/* ========================================================================
 * Excel 导入模板与解析
 * ========================================================================
 * 第一个工作表为数据表，首行表头、第二行示例；另附"填写说明"表
 * 解析时按列序读取，忽略空行，示例行需由使用者删除或覆盖
 * ======================================================================== */

const (
	templateCodeUsage          = "code-usage"
	templateCodeClassification = "code-classification"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	dateLayout      = "2006-01-02"
	helpSheet       = "填写说明"
)

type templateColumn struct {
	header   string
	help     string
	required bool
	width    float64
	sample   string
}

var codeUsageColumns = []templateColumn{
	{"型号类型", "型号分类类型，如 SLU", true, 12, "SLU"},
	{"分类数字", "三层结构必填，单个数字 0-9；两层结构留空", false, 10, "1"},
	{"实际编号", "三层结构为 00-99，两层结构为 1-6 位数字", true, 10, "05"},
	{"扩展后缀", "扩展码后缀，基础编码须已存在", false, 10, ""},
	{"品名", "产品名称", false, 20, "控制板"},
	{"描述", "描述信息", false, 30, ""},
	{"占用类型", "规划 / 工令 / 暂停", false, 10, "规划"},
	{"客户", "客户编码", false, 12, ""},
	{"工厂", "工厂编码", false, 12, ""},
	{"建档人", "留空取当前操作人", false, 10, ""},
	{"申请人", "留空取当前操作人", false, 10, ""},
	{"建档日期", "格式 YYYY-MM-DD，留空取当前日期", false, 12, ""},
}

var codeClassificationColumns = []templateColumn{
	{"型号类型", "三层结构的型号分类类型", true, 12, "SLU"},
	{"分类数字", "单个数字 0-9，创建后自动预分配 100 个编号", true, 10, "1"},
	{"分类名称", "编码分类名称", true, 20, "标准品"},
}

// buildTemplate 生成导入模板
func buildTemplate(kind string) (*excelize.File, string, error) {
	var (
		cols  []templateColumn
		sheet string
		name  string
	)
	switch kind {
	case templateCodeUsage:
		cols, sheet, name = codeUsageColumns, "编码导入", "code_usage_import_template.xlsx"
	case templateCodeClassification:
		cols, sheet, name = codeClassificationColumns, "编码分类导入", "code_classification_import_template.xlsx"
	default:
		return nil, "", errors.Newf(errors.ErrCodeInvalidArgument, "unknown template type %q", kind)
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		_ = f.Close()
		return nil, "", err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})
	if err != nil {
		_ = f.Close()
		return nil, "", err
	}

	if _, err := f.NewSheet(helpSheet); err != nil {
		_ = f.Close()
		return nil, "", err
	}
	_ = f.SetSheetRow(helpSheet, "A1", &[]string{"列名", "说明", "是否必填"})

	for i, col := range cols {
		ref, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetCellValue(sheet, ref+"1", col.header)
		_ = f.SetCellStyle(sheet, ref+"1", ref+"1", headerStyle)
		_ = f.SetColWidth(sheet, ref, ref, col.width)
		// 全部按文本写入，避免 "05" 被转成数字 5
		_ = f.SetCellStr(sheet, ref+"2", col.sample)

		required := "否"
		if col.required {
			required = "是"
		}
		_ = f.SetSheetRow(helpSheet, fmt.Sprintf("A%d", i+2), &[]string{col.header, col.help, required})
	}
	_ = f.SetColWidth(helpSheet, "A", "A", 12)
	_ = f.SetColWidth(helpSheet, "B", "B", 44)
	_ = f.SetColWidth(helpSheet, "C", "C", 10)
	return f, name, nil
}

// parseImportFile 读取编码导入文件的首个工作表
func parseImportFile(r io.Reader) ([]engine.ImportRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, "cannot read xlsx file", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, "cannot read sheet", err)
	}
	if len(rows) < 2 {
		return nil, errors.New(errors.ErrCodeInvalidArgument, "import file has no data rows")
	}

	out := make([]engine.ImportRow, 0, len(rows)-1)
	for i, raw := range rows[1:] {
		if blankRow(raw) {
			continue
		}
		row, err := toImportRow(raw)
		if err != nil {
			// 表头占第 1 行
			return nil, errors.Wrapf(errors.ErrCodeInvalidFormat, err, "row %d", i+2)
		}
		out = append(out, row)
	}
	if len(out) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidArgument, "import file has no data rows")
	}
	return out, nil
}

func toImportRow(raw []string) (engine.ImportRow, error) {
	cell := func(i int) string {
		if i < len(raw) {
			return strings.TrimSpace(raw[i])
		}
		return ""
	}

	row := engine.ImportRow{
		CodeKey: engine.CodeKey{
			ModelType:            strings.ToUpper(cell(0)),
			ClassificationNumber: cell(1),
			ActualNumber:         cell(2),
			Extension:            cell(3),
		},
		Metadata: engine.Metadata{
			ProductName:   cell(4),
			Description:   cell(5),
			OccupancyType: model.OccupancyType(cell(6)),
			CustomerID:    cell(7),
			FactoryID:     cell(8),
			Builder:       cell(9),
			Requester:     cell(10),
		},
	}
	if d := cell(11); d != "" {
		t, err := time.ParseInLocation(dateLayout, d, time.Local)
		if err != nil {
			return row, fmt.Errorf("invalid creation date %q, expected YYYY-MM-DD", d)
		}
		row.CreationDate = &t
	}
	return row, nil
}

func blankRow(raw []string) bool {
	for _, v := range raw {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
