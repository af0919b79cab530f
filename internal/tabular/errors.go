package tabular

import "errors"

// ErrInvalidFormat indicates the upload extension is not supported.
var ErrInvalidFormat = errors.New("formato invalido: utilize arquivos CSV ou XLSX")

// ErrEmptyFile indicates a zero-length upload body.
var ErrEmptyFile = errors.New("arquivo vazio")

// ErrEmptyDataset indicates no usable rows survived decoding/normalization.
var ErrEmptyDataset = errors.New("nenhum dado valido encontrado no arquivo enviado")
